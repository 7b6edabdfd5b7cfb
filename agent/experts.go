package agent

import (
	"google.golang.org/genai"
)

const (
	proModel   = "gemini-3-pro-preview"
	flashModel = "gemini-3-flash-preview"
)

const analystInstruction = `
DU BIST ASK WARREN, ein digitaler Investment-Analyse-Agent.
Deine Argumentation, Struktur, dein Tonfall und deine Schlussfolgerungen leiten sich ausschließlich aus der öffentlich dokumentierten Investment-Philosophie von Warren Buffett ab.
Analysiere Unternehmen wie ein langfristiger Geschäftsinhaber auf Basis öffentlich zugänglicher Informationen.

SPRACH- & AUSGABEREGELN:
Sprache: Deutsch (zwingend)
Stil: Ruhig, rational, klar. Kein Hype, keine Emojis.

INVESTITIONSPRINZIPIEN:
1. Circle of Competence
2. Economic Moat (Rating: Kein / Schwach / Mittel / Stark)
3. Managementqualität
4. Finanzielle Stärke (Gewinnstabilität, ROIC, Verschuldung)
5. Bewertung vs. Innerer Wert (Sicherheitsmarge)

MANDATORISCHE STRUKTUR DES TEXTES:
1️⃣ Geschäftsmodell
2️⃣ Wettbewerbsvorteile (Moat)
3️⃣ Finanzielle Qualität
4️⃣ Management & Kapitalallokation
5️⃣ Bewertung & Sicherheitsmarge
6️⃣ Zentrale Risiken
🔮 Urteil des Orakels von Omaha
`

func text(s string) *genai.Content { return &genai.Content{Parts: []*genai.Part{{Text: s}}} }

// NewAnalyst writes the grounded Buffett analysis.
func NewAnalyst() *Expert {
	return &Expert{
		Name:      "Analyst",
		ModelName: proModel,
		Retry:     DefaultRetry,
		Config: &genai.GenerateContentConfig{
			SystemInstruction: text(analystInstruction),
			Tools:             []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
		},
	}
}

func metricSeries() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"year":  {Type: genai.TypeString},
				"value": {Type: genai.TypeNumber},
			},
			Required: []string{"year", "value"},
		},
	}
}

// NewExtractor turns market knowledge into the chart series, as JSON.
func NewExtractor() *Expert {
	return &Expert{
		Name:      "Extractor",
		ModelName: proModel,
		Retry:     DefaultRetry,
		Config: &genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"charts": {
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"revenue":    metricSeries(),
							"margins":    metricSeries(),
							"roic":       metricSeries(),
							"stockPrice": metricSeries(),
						},
						Required: []string{"revenue", "margins", "roic", "stockPrice"},
					},
				},
				Required: []string{"charts"},
			},
		},
	}
}

// NewScout searches the latest market quotes.
func NewScout() *Expert {
	return &Expert{
		Name:      "Scout",
		ModelName: flashModel,
		Retry:     DefaultRetry,
		Config: &genai.GenerateContentConfig{
			Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
		},
	}
}

// NewClerk formats the scout's findings as a JSON ticker.
func NewClerk() *Expert {
	return &Expert{
		Name:      "Clerk",
		ModelName: flashModel,
		Retry:     DefaultRetry,
		Config: &genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema: &genai.Schema{
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"name":     {Type: genai.TypeString},
						"symbol":   {Type: genai.TypeString},
						"price":    {Type: genai.TypeString},
						"change":   {Type: genai.TypeString},
						"isUp":     {Type: genai.TypeBoolean},
						"currency": {Type: genai.TypeString, Description: "ISO 4217 code, empty for indices"},
					},
					Required: []string{"name", "symbol", "price", "change", "isUp"},
				},
			},
		},
	}
}

// NewArchivist summarises vault documents.
func NewArchivist() *Expert {
	return &Expert{
		Name:      "Archivist",
		ModelName: flashModel,
		Retry:     DefaultRetry,
		Config: &genai.GenerateContentConfig{
			SystemInstruction: text("Du bist Warren Buffett. Analysiere Dokumente rational, langfristig und ohne unnötige Komplexität."),
		},
	}
}
