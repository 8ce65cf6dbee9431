package ui

import (
	"strconv"
	"strings"
	"time"

	"bricksync/internal/domain"

	. "maragu.dev/gomponents"
	data "maragu.dev/gomponents-datastar"
	. "maragu.dev/gomponents/html"
)

type navItem struct {
	Label string
	Href  string
	Key   string
}

var navItems = []navItem{
	{Label: "Runs", Href: "/ui/runs", Key: "runs"},
	{Label: "Metrics", Href: "/metrics", Key: "metrics"},
}

func pageHead(title string, extra ...Node) Node {
	return Head(
		Meta(Charset("utf-8")),
		Meta(Name("viewport"), Content("width=device-width, initial-scale=1")),
		TitleEl(Text(title+" | bricksync")),
		Link(Rel("icon"), Href("data:,")),
		Link(Rel("stylesheet"), Href(stylesheetPath)),
		Script(Raw(themeInitScript)),
		Group(extra),
	)
}

func appPage(title, active string, body ...Node) Node {
	nav := make([]Node, 0, len(navItems))
	for _, item := range navItems {
		className := "app-nav-link"
		if item.Key == active {
			className += " active"
		}
		nav = append(nav, A(Href(item.Href), Class(className), Text(item.Label)))
	}

	return HTML(
		Lang("en"),
		pageHead(title,
			Script(
				Type("module"),
				Src("https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0-RC.7/bundles/datastar.js"),
			),
		),
		Body(
			Main(Class("app-shell"),
				Aside(
					Class("app-sidebar"),
					Strong(Text("bricksync")),
					P(Class("muted"), Text("Catalog sync runs")),
					Nav(Class("app-nav"), Group(nav)),
				),
				Section(
					Class("app-main"),
					Div(
						Class("topbar"),
						H1(Class("page-title"), Text(title)),
						Button(Type("button"), ID("theme-toggle"), Class("btn"), Text("Theme")),
					),
					Group(body),
				),
			),
			Script(Raw(themeToggleScript)),
		),
	)
}

func errorPage(title, message string) Node {
	return HTML(
		Lang("en"),
		pageHead(title),
		Body(
			Main(
				Class("app-main"),
				H1(Class("page-title"), Text(title)),
				P(Text(message)),
				P(A(Href("/ui/runs"), Text("Back to runs"))),
			),
		),
	)
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Format(time.RFC3339)
}

func formatTimePtr(ts *time.Time) string {
	if ts == nil {
		return "-"
	}
	return formatTime(*ts)
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Millisecond).String()
}

func containsExpr(value string) string {
	lower := strings.ToLower(value)
	return "$q === '' || " + strconv.Quote(lower) + ".includes($q.toLowerCase())"
}

func cardClass(extra ...string) string {
	parts := []string{"card"}
	parts = append(parts, extra...)
	return strings.Join(parts, " ")
}

func quickFilter(placeholder string) Node {
	return Div(
		Class(cardClass()),
		Label(Class("muted"), For("quick-filter"), Text("Quick filter")),
		Input(ID("quick-filter"), Type("search"), Class("form-control"), Placeholder(placeholder), data.Bind("q"), AutoComplete("off")),
	)
}

func emptyStateCard(message string) Node {
	return Div(Class(cardClass()), P(Class("muted"), Text(message)))
}

func statusLabel(text string) Node {
	className := "label"
	switch text {
	case string(domain.StatusConverged), string(domain.RunSucceeded):
		className += " label-success"
	case string(domain.StatusSkipped), string(domain.RunRunning):
		className += " label-attention"
	case string(domain.StatusFailed):
		className += " label-danger"
	}
	return Span(Class(className), Text(text))
}
