package views

import (
	"context"
	"time"

	"github.com/a-h/templ"
)

// AdminLogin renders the password form.
func AdminLogin(site Site, showError bool, csrfToken string) templ.Component {
	return Layout(site, PageMeta{Title: "Admin"}, component(func(ctx context.Context, w *writer) {
		w.raw(`<section class="admin"><h1>Admin</h1>`)
		if showError {
			w.raw(`<p class="error">Senha incorreta.</p>`)
		}
		w.raw(`<form method="post" action="/admin/login/">`)
		w.raw(`<input type="hidden" name="_csrf"`)
		w.attr("value", csrfToken)
		w.raw(`><input type="password" name="password" autocomplete="current-password" required>`)
		w.raw(`<button type="submit">Entrar</button></form></section>`)
	}))
}

// AdminDashboard lists cached pages with their age and revalidation actions.
func AdminDashboard(site Site, entries []CacheEntry, message, csrfToken string) templ.Component {
	return Layout(site, PageMeta{Title: "Admin"}, component(func(ctx context.Context, w *writer) {
		w.raw(`<section class="admin"><h1>Páginas em cache</h1>`)
		if message != "" {
			w.raw(`<p class="message">`)
			w.text(message)
			w.raw(`</p>`)
		}
		w.raw(`<form method="post" action="/admin/revalidate/">`)
		hiddenCSRF(w, csrfToken)
		w.raw(`<button type="submit">Revalidar tudo</button></form>`)
		w.raw(`<table><thead><tr><th>Página</th><th>Atualizada</th><th></th></tr></thead><tbody>`)
		for _, e := range entries {
			w.raw("<tr><td>")
			w.text(e.Key)
			if e.Stale {
				w.raw(` <span class="stale">expirada</span>`)
			}
			w.raw("</td><td>")
			w.text(e.FetchedAt.UTC().Format(time.RFC3339))
			w.raw(`</td><td><form method="post" action="/admin/revalidate/">`)
			hiddenCSRF(w, csrfToken)
			w.raw(`<input type="hidden" name="key"`)
			w.attr("value", e.Key)
			w.raw(`><button type="submit">Revalidar</button></form></td></tr>`)
		}
		w.raw(`</tbody></table><form method="post" action="/admin/logout/">`)
		hiddenCSRF(w, csrfToken)
		w.raw(`<button type="submit">Sair</button></form></section>`)
	}))
}

func hiddenCSRF(w *writer, token string) {
	w.raw(`<input type="hidden" name="_csrf"`)
	w.attr("value", token)
	w.raw(">")
}
