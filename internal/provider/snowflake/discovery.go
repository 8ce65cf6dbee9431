package snowflake

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"bricksync/internal/ddl"
	"bricksync/internal/domain"
)

// volumeLocation is one storage location of an external volume.
type volumeLocation struct {
	Volume   string
	Provider string
	BaseURL  string
}

// stage is an external stage and the URL it reads from.
type stage struct {
	Name string // DB.SCHEMA.NAME
	URL  string
}

// storageLocation is the STORAGE_LOCATION_n property value of an external
// volume.
type storageLocation struct {
	Name     string `json:"NAME"`
	Provider string `json:"STORAGE_PROVIDER"`
	BaseURL  string `json:"STORAGE_BASE_URL"`
}

// externalVolume returns the volume location whose base URL is the longest
// prefix of path.
func (p *Provider) externalVolume(ctx context.Context, path string) (volumeLocation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.volumesLoaded {
		vols, err := p.loadVolumes(ctx)
		if err != nil {
			return volumeLocation{}, err
		}
		p.volumes = vols
		p.volumesLoaded = true
	}
	var best volumeLocation
	for _, v := range p.volumes {
		if p.config.ExternalVolume != "" && !strings.EqualFold(v.Volume, p.config.ExternalVolume) {
			continue
		}
		if strings.HasPrefix(path, v.BaseURL) && len(v.BaseURL) > len(best.BaseURL) {
			best = v
		}
	}
	if best.Volume == "" {
		return volumeLocation{}, domain.ErrConfig("no Snowflake external volume has a base URL containing %s", path)
	}
	p.logger.Debug("matched external volume", "volume", best.Volume, "base_url", best.BaseURL)
	return best, nil
}

func (p *Provider) loadVolumes(ctx context.Context) ([]volumeLocation, error) {
	names := []string{p.config.ExternalVolume}
	if p.config.ExternalVolume == "" {
		rows, err := p.query(ctx, "SHOW EXTERNAL VOLUMES")
		if err != nil {
			return nil, fmt.Errorf("list external volumes: %w", err)
		}
		names = names[:0]
		for _, r := range rows {
			names = append(names, r["name"])
		}
	}

	var out []volumeLocation
	for _, name := range names {
		rows, err := p.query(ctx, "DESCRIBE EXTERNAL VOLUME "+ddl.QuoteIdentifier(name))
		if err != nil {
			return nil, fmt.Errorf("describe external volume %s: %w", name, err)
		}
		for _, r := range rows {
			if !strings.HasPrefix(strings.ToUpper(r["property"]), "STORAGE_LOCATION_") {
				continue
			}
			var loc storageLocation
			if err := json.Unmarshal([]byte(r["property_value"]), &loc); err != nil {
				return nil, fmt.Errorf("parse %s of external volume %s: %w", r["property"], name, err)
			}
			if loc.BaseURL == "" {
				continue
			}
			out = append(out, volumeLocation{Volume: name, Provider: loc.Provider, BaseURL: loc.BaseURL})
		}
	}
	return out, nil
}

// externalStage returns the stage whose URL is the longest prefix of
// location.
func (p *Provider) externalStage(ctx context.Context, location string) (stage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.stagesLoaded {
		stages, err := p.loadStages(ctx)
		if err != nil {
			return stage{}, err
		}
		p.stages = stages
		p.stagesLoaded = true
	}
	var best stage
	for _, s := range p.stages {
		// A bare "/" or empty URL is an internal stage.
		if len(s.URL) <= 1 {
			continue
		}
		if p.config.ExternalStage != "" && !strings.EqualFold(s.Name, p.config.ExternalStage) {
			continue
		}
		if strings.HasPrefix(location, s.URL) && len(s.URL) > len(best.URL) {
			best = s
		}
	}
	if best.Name == "" {
		return stage{}, domain.ErrConfig("no Snowflake external stage has a URL containing %s", location)
	}
	p.logger.Debug("matched external stage", "stage", best.Name, "url", best.URL)
	return best, nil
}

func (p *Provider) loadStages(ctx context.Context) ([]stage, error) {
	rows, err := p.query(ctx, "SHOW STAGES")
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	out := make([]stage, 0, len(rows))
	for _, r := range rows {
		out = append(out, stage{
			Name: r["database_name"] + "." + r["schema_name"] + "." + r["name"],
			URL:  r["url"],
		})
	}
	return out, nil
}

// catalogIntegration returns the configured catalog integration, or the
// first enabled ICEBERG integration whose catalog source is OBJECT_STORE.
func (p *Provider) catalogIntegration(ctx context.Context) (string, error) {
	if p.config.CatalogIntegration != "" {
		return p.config.CatalogIntegration, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.integration != "" {
		return p.integration, nil
	}
	rows, err := p.query(ctx, "SHOW CATALOG INTEGRATIONS")
	if err != nil {
		return "", fmt.Errorf("list catalog integrations: %w", err)
	}
	for _, r := range rows {
		if strings.EqualFold(r["enabled"], "false") {
			continue
		}
		name := r["name"]
		desc, err := p.query(ctx, "DESCRIBE CATALOG INTEGRATION "+ddl.QuoteIdentifier(name))
		if err != nil {
			return "", fmt.Errorf("describe catalog integration %s: %w", name, err)
		}
		props := make(map[string]string, len(desc))
		for _, d := range desc {
			props[strings.ToUpper(d["property"])] = strings.ToUpper(d["property_value"])
		}
		if props["CATALOG_SOURCE"] == "OBJECT_STORE" && props["TABLE_FORMAT"] == "ICEBERG" && props["ENABLED"] != "FALSE" {
			p.logger.Info("using catalog integration", "integration", name)
			p.integration = name
			return name, nil
		}
	}
	return "", domain.ErrConfig("no enabled Snowflake catalog integration with OBJECT_STORE source and ICEBERG format; create one before syncing iceberg tables")
}
