package web

import (
	"embed"
	"html/template"
	"net/http"

	"dispatchq/internal/state"
)

//go:embed templates/*
var templateFiles embed.FS

func render(w http.ResponseWriter, tmplName string, data any) {
	funcMap := template.FuncMap{
		"StatusBadgeClass": StatusBadgeClass,
	}

	tmpl := template.New("layout.html").Funcs(funcMap)
	tmpl = template.Must(tmpl.ParseFS(templateFiles,
		"templates/layout.html",
		"templates/"+tmplName+".html",
	))

	if err := tmpl.ExecuteTemplate(w, "layout.html", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func StatusBadgeClass(status state.Status) string {
	switch status {
	case state.StatusQueued:
		return "badge bg-info"
	case state.StatusProcessing:
		return "badge bg-primary"
	case state.StatusRetrying:
		return "badge bg-warning"
	case state.StatusSucceeded:
		return "badge bg-success"
	case state.StatusFailed:
		return "badge bg-danger"
	case state.StatusCleared:
		return "badge bg-secondary"
	default:
		return "badge bg-light text-dark"
	}
}
