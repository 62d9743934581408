package matching

import (
	"strings"

	"github.com/MincaAI/MVP-underwriting-sub000/internal/model"
	"github.com/MincaAI/MVP-underwriting-sub000/pkg/normalizer"
)

// buildQueryLabel renders the query in the same fixed attribute order as
// catalog entry labels, so the query-side embedding is comparable with the
// stored vectors. With no extracted attributes at all, the key=value frame
// adds nothing, so the normalized description is embedded as-is.
func buildQueryLabel(attrs model.Attributes, normalizedDescription string) string {
	if attrs.Empty() {
		return normalizedDescription
	}
	parts := []string{
		"modelo=" + attrs.Year.Value,
		"marca=" + attrs.Brand.Value,
		"submarca=" + attrs.Model.Value,
		"segmento=",
		"carroceria=" + attrs.BodyStyle.Value,
		"descripcion=" + normalizedDescription,
	}
	return strings.Join(parts, " | ")
}

// labelAttributes holds the fields parsed back out of an entry label for
// the attribute-consistency adjustment.
type labelAttributes struct {
	Marca  string
	Modelo string
}

// parseLabel extracts marca and modelo from a structured label. Labels are
// produced by CatalogEntry.BuildLabel, so the key=value segments are stable.
func parseLabel(label string) labelAttributes {
	var out labelAttributes
	for _, segment := range strings.Split(label, "|") {
		segment = strings.TrimSpace(segment)
		key, value, found := strings.Cut(segment, "=")
		if !found {
			continue
		}
		switch key {
		case "marca":
			out.Marca = normalizer.Normalize(value)
		case "modelo":
			out.Modelo = strings.TrimSpace(value)
		}
	}
	return out
}

// labelText strips the key= prefixes and separators from a structured label,
// leaving the attribute values as plain text for fuzzy comparison against
// the raw query description.
func labelText(label string) string {
	var b strings.Builder
	for _, segment := range strings.Split(label, "|") {
		segment = strings.TrimSpace(segment)
		if _, value, found := strings.Cut(segment, "="); found {
			segment = value
		}
		if segment == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(segment)
	}
	return normalizer.Normalize(b.String())
}
