// Package source resolves source catalog objects into immutable Source
// graphs: it picks the effective sync format of each table and walks view
// dependencies down to physical tables.
package source

import "bricksync/internal/domain"

// ResolveFormat picks the format a table is synced in. openPresent reports
// whether an iceberg projection of the table's data is available.
//
// Only Delta tables with an iceberg projection can switch formats; there is
// no projection from iceberg back to Delta, so delta_preferred keeps iceberg
// tables as they are.
func ResolveFormat(native domain.TableFormat, pref domain.FormatPreference, openPresent bool) domain.TableFormat {
	if pref.WantsOpenFormat() && native == domain.FormatDelta && openPresent {
		return domain.FormatIceberg
	}
	return native
}

// Supported reports whether tables in format f can be synced at all.
func Supported(f domain.TableFormat) bool {
	return f == domain.FormatDelta || f == domain.FormatIceberg
}
