package http

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var currencySymbols = map[string]string{
	"usd": "$",
	"eur": "€",
	"gbp": "£",
}

// formatPrice renders a plan's amount in major units, e.g. "$10.00".
func formatPrice(p models.Plan) string {
	major := fmt.Sprintf("%d.%02d", p.Amount/100, p.Amount%100)
	if sym, ok := currencySymbols[strings.ToLower(p.Currency)]; ok {
		return sym + major
	}
	return strings.ToUpper(p.Currency) + " " + major
}

func loadTemplates() *template.Template {
	return template.Must(template.New("pages").
		Funcs(template.FuncMap{"price": formatPrice}).
		ParseFS(templateFS, "templates/*.html"))
}

// page renders one of the marketing or legal pages.
func (h *Handler) page(name, title string) gin.HandlerFunc {
	return func(c *gin.Context) {
		data := gin.H{
			"Title": title,
			"Year":  time.Now().Year(),
		}
		if name == "index.html" || name == "pricing.html" {
			cat := h.store.Catalog()
			data["Plans"] = cat.Plans
			data["Regions"] = cat.Regions
		}
		c.HTML(http.StatusOK, name, data)
	}
}
