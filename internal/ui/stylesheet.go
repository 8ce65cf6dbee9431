package ui

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sync"
)

const stylesheetPath = "/ui/static/app.css"

const appStylesheet = `:root{--bg:#f6f8fa;--fg:#1f2328;--muted:#59636e;--card:#fff;--border:#d1d9e0;--accent:#0969da;--ok:#1a7f37;--warn:#9a6700;--bad:#d1242f}
[data-theme=dark]{--bg:#0d1117;--fg:#e6edf3;--muted:#9198a1;--card:#151b23;--border:#3d444d;--accent:#4493f8;--ok:#3fb950;--warn:#d29922;--bad:#f85149}
*{box-sizing:border-box}
body{margin:0;font-family:Inter,system-ui,sans-serif;background:var(--bg);color:var(--fg)}
a{color:var(--accent);text-decoration:none}
.app-shell{display:flex;min-height:100vh}
.app-sidebar{width:14rem;padding:1rem;border-right:1px solid var(--border);background:var(--card)}
.app-nav{display:flex;flex-direction:column;gap:.25rem;margin-top:1rem}
.app-nav-link{padding:.4rem .6rem;border-radius:6px;color:var(--fg)}
.app-nav-link.active{background:var(--bg);font-weight:600}
.app-main{flex:1;padding:1.5rem;min-width:0}
.topbar{display:flex;justify-content:space-between;align-items:center;margin-bottom:1rem}
.page-title{margin:0;font-size:1.4rem}
.card{background:var(--card);border:1px solid var(--border);border-radius:8px;padding:1rem;margin-bottom:1rem}
.table-wrap{overflow-x:auto}
table{width:100%;border-collapse:collapse}
th,td{text-align:left;padding:.45rem .6rem;border-bottom:1px solid var(--border);font-size:.9rem;vertical-align:top}
.muted{color:var(--muted);font-size:.85rem}
.form-control{width:100%;padding:.4rem .6rem;border:1px solid var(--border);border-radius:6px;background:var(--bg);color:var(--fg)}
.btn{padding:.35rem .8rem;border:1px solid var(--border);border-radius:6px;background:var(--card);color:var(--fg);cursor:pointer}
.label{display:inline-block;padding:0 .5rem;border-radius:1rem;border:1px solid currentColor;font-size:.75rem;line-height:1.5}
.label-success{color:var(--ok)}
.label-attention{color:var(--warn)}
.label-danger{color:var(--bad)}
.stats{display:flex;gap:1.5rem}
.stats div strong{display:block;font-size:1.3rem}
.error-detail{white-space:pre-wrap;font-family:ui-monospace,monospace;font-size:.8rem;color:var(--bad)}
`

var (
	stylesheetETagOnce sync.Once
	stylesheetETag     string
)

func serveStylesheet(w http.ResponseWriter, r *http.Request) {
	stylesheetETagOnce.Do(func() {
		sum := sha256.Sum256([]byte(appStylesheet))
		stylesheetETag = `"` + hex.EncodeToString(sum[:8]) + `"`
	})
	w.Header().Set("ETag", stylesheetETag)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if r.Header.Get("If-None-Match") == stylesheetETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	_, _ = w.Write([]byte(appStylesheet))
}
