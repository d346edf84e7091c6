package prompt

import (
	"encoding/json"
	"slices"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/louisbranch/euroturn/internal/services/turn/domain/content"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/state"
)

const (
	jsonOnlySystem   = "Antworte ausschließlich mit gültigem JSON. Kein Markdown."
	noMemory         = "Keine."
	noDomesticReport = "Keine auffälligen Ereignisse gemeldet."
	defaultTopP      = 0.95
)

// German renders every prompt in German with German number formatting.
type German struct {
	printer *message.Printer
}

// NewGerman returns a German builder.
func NewGerman() *German {
	return &German{printer: message.NewPrinter(language.German)}
}

// External renders the external moves prompt.
func (g *German) External(in ExternalInput) content.Prompt {
	var b strings.Builder
	g.line(&b, "Du bist die Weltlage-Engine eines EU-Geopolitik-Spiels.")
	g.line(&b, "Erzeuge für Runde %d GENAU 3 Außenmacht-Züge: USA, China, Russland.", in.Round)
	b.WriteString("\nZiel:\n")
	b.WriteString("- Mehr Kriegs-/Sicherheitsdruck (threat/frontline) realistisch eskalieren oder deeskalieren.\n")
	b.WriteString("- Mehr Innenpolitik/Populismus triggern (migration/disinfo/energy wirken indirekt auf Zustimmung/Stabilität).\n")
	b.WriteString("- Mehr Diplomatie/Deals ermöglichen (USA/China-Angebote oder Druck).\n")

	b.WriteString("\nVerrücktheit der Akteure (0 = nüchtern, 100 = völlig unberechenbar):\n")
	for _, actor := range state.Actors() {
		g.line(&b, "- %s: %d", actor, in.Craziness[actor])
	}

	b.WriteString("\nAktueller EU-Status:\n")
	g.euStatus(&b, in.EU)
	b.WriteString("\nMemory (letzte Runden):\n")
	b.WriteString(g.memory(in.Summaries))

	b.WriteString("\n\nRegeln:\n")
	b.WriteString("- Gib NUR gültiges JSON zurück, kein Markdown.\n")
	b.WriteString("- actor muss exakt \"USA\", \"China\", \"Russia\" sein (jeweils einmal).\n")
	b.WriteString("- headline ist öffentlich (1 Satz), quote ist ein kurzes Zitat des Akteurs.\n")
	b.WriteString("- modifiers sind Ganzzahlen in etwa -12..+12 (eu_cohesion_delta eher -4..+4).\n")
	b.WriteString("- Je verrückter ein Akteur, desto überraschender und extremer sein Zug.\n")
	b.WriteString("- global_context ist eine neue 1-Zeilen-Lagebeschreibung, die die drei Moves widerspiegelt.\n")
	b.WriteString("- Moves sollen sich unterscheiden und plausible Folgeketten nahelegen.\n")
	schema(&b, content.ExternalMovesContract().Schema)

	return content.Prompt{System: jsonOnlySystem, User: b.String(), Temperature: 0.8, TopP: defaultTopP, MaxTokens: 1200}
}

// Domestic renders the domestic events prompt.
func (g *German) Domestic(in DomesticInput) content.Prompt {
	keys := make([]string, len(in.Countries))
	for i, c := range in.Countries {
		keys[i] = c.Key
	}

	var b strings.Builder
	g.line(&b, "Du bist die Innenpolitik-Redaktion eines EU-Geopolitik-Spiels.")
	g.line(&b, "Erzeuge für Runde %d je Land GENAU eine innenpolitische Schlagzeile.", in.Round)
	b.WriteString("\nAktueller EU-Status:\n")
	g.euStatus(&b, in.EU)
	b.WriteString("\nAußenmächte diese Runde:\n")
	b.WriteString(externalLines(in.External))
	b.WriteString("\n\nLänder:\n")
	for _, c := range in.Countries {
		g.countryLine(&b, c)
		if len(c.RecentActions) > 0 {
			g.line(&b, "  Letzte Aktionen: %s", strings.Join(c.RecentActions, " | "))
		}
	}
	b.WriteString("\nMemory (letzte Runden):\n")
	b.WriteString(g.memory(in.Summaries))

	b.WriteString("\n\nRegeln:\n")
	b.WriteString("- Gib NUR gültiges JSON zurück, kein Markdown.\n")
	g.line(&b, "- Keys in \"events\" müssen exakt die internen Country-Keys sein: %s", strings.Join(keys, ", "))
	b.WriteString("- headline ist 1 Satz, details höchstens 2 Sätze.\n")
	b.WriteString("- craziness ist eine Ganzzahl 0..100 und beschreibt, wie absurd das Ereignis ist.\n")
	b.WriteString("- Ereignisse greifen Außenmacht-Druck und die letzten Aktionen des Landes auf.\n")
	schema(&b, content.DomesticEventsContract(keys).Schema)

	return content.Prompt{System: jsonOnlySystem, User: b.String(), Temperature: 0.85, TopP: defaultTopP, MaxTokens: 1400}
}

// Actions renders one country's three-variant action prompt.
func (g *German) Actions(in ActionInput) content.Prompt {
	domestic := strings.TrimSpace(in.Domestic)
	if domestic == "" {
		domestic = noDomesticReport
	}

	var b strings.Builder
	g.line(&b, "Du berätst die Regierung von %s in einem EU-Geopolitik-Spiel (Runde %d).", in.Country.Display, in.Round)
	g.line(&b, "Ambition: %s", in.Country.Ambition)
	b.WriteString("\nAktuelle Werte:\n")
	g.countryLine(&b, in.Country)
	b.WriteString("\nEU-Status:\n")
	g.euStatus(&b, in.EU)
	b.WriteString("\nAußenmächte diese Runde:\n")
	b.WriteString(externalLines(in.External))
	g.line(&b, "\n\nInnenpolitik: %s", domestic)
	b.WriteString("\nLetzte Aktionen:\n")
	if len(in.Country.RecentActions) == 0 {
		b.WriteString(noMemory)
	} else {
		for _, action := range in.Country.RecentActions {
			g.line(&b, "- %s", action)
		}
	}

	b.WriteString("\n\nAufgabe:\n")
	b.WriteString("Schlage GENAU drei Handlungsoptionen vor: aggressiv, moderate, passiv.\n")
	b.WriteString("Jede Option hat eine öffentliche Aktion (1-2 Sätze) und erwartete Folgen.\n")
	b.WriteString("\nRegeln:\n")
	b.WriteString("- Gib NUR gültiges JSON zurück, kein Markdown.\n")
	b.WriteString("- Folgen sind kleine Ganzzahlen, typischerweise -10..+10.\n")
	b.WriteString("- global_context beschreibt in 1 Zeile, wie sich die Lage durch die Option verändert.\n")
	schema(&b, content.CountryActionsContract().Schema)

	return content.Prompt{System: jsonOnlySystem, User: b.String(), Temperature: 0.9, TopP: defaultTopP, MaxTokens: 900}
}

// Resolution renders the round resolution prompt.
func (g *German) Resolution(in ResolutionInput) content.Prompt {
	keys := make([]string, len(in.Countries))
	for i, c := range in.Countries {
		keys[i] = c.Key
	}

	var b strings.Builder
	g.line(&b, "Du bist Spielleiter und Simulations-Engine für ein EU-Geopolitik-Spiel.")
	b.WriteString("\nAufgabe:\n")
	g.line(&b, "Berechne das Ergebnis der Runde %d für ALLE Länder gemeinsam.", in.Round)
	b.WriteString("Die Effekte dürfen sich gegenseitig beeinflussen (z.B. Ungarn-Aktion wirkt auf Frankreich).\n")
	b.WriteString("Gib ausschließlich DIE NETTO-DELTAS je Land aus (kleine realistische Ganzzahlen, typischerweise -10..+10),\n")
	b.WriteString("und zusätzlich EU-Kohäsions-Delta und einen neuen global_context (1 Zeile).\n")
	b.WriteString("\nStory-/Memory-Kontext (letzte Runden, zur Kontinuität):\n")
	b.WriteString(g.memory(in.Summaries))
	b.WriteString("\n\nAktueller EU-Status:\n")
	g.euStatus(&b, in.EU)
	b.WriteString("\nAußenmächte diese Runde:\n")
	b.WriteString(externalLines(in.External))
	b.WriteString("\n\nInnenpolitik diese Runde:\n")
	b.WriteString(domesticLines(in.Domestic))
	b.WriteString("\n\nAktuelle Länderwerte:\n")
	for _, c := range in.Countries {
		g.countryLine(&b, c)
	}
	b.WriteString("\nGewählte Aktionen dieser Runde:\n")
	b.WriteString(ChoiceLines(in.Choices))

	b.WriteString("\n\nRegeln:\n")
	b.WriteString("- Gib NUR gültiges JSON zurück (kein Markdown).\n")
	g.line(&b, "- Keys in \"länder\" müssen exakt die internen Country-Keys sein: %s", strings.Join(keys, ", "))
	b.WriteString("- Alle Länder müssen enthalten sein.\n")
	b.WriteString("- Deltas sind Ganzzahlen.\n")
	b.WriteString("- global_context ist ein kurzer Satz (max 1 Zeile).\n")
	b.WriteString("- Sei konsistent und plausibel, und nutze Memory-Kontext für wiederkehrende Konflikte/Kooperationen.\n")
	schema(&b, content.RoundResolutionContract(keys).Schema)

	return content.Prompt{System: jsonOnlySystem, User: b.String(), Temperature: 0.6, TopP: defaultTopP, MaxTokens: 1700}
}

// Summary renders the round summary prompt.
func (g *German) Summary(in SummaryInput) content.Prompt {
	var b strings.Builder
	g.line(&b, "Du bist Chronist eines EU-Geopolitik-Spiels.")
	g.line(&b, "Erstelle eine sehr kurze Zusammenfassung der Runde %d als 2-4 Bulletpoints.", in.Round)
	b.WriteString("\nNutze diese Inputs:\n")
	b.WriteString("- Memory (letzte Runden):\n")
	b.WriteString(g.memory(in.Summaries))
	b.WriteString("\n\n")
	g.line(&b, "- EU vorher: Kohäsion=%d%%, Kontext=%q", in.EUBefore.Cohesion, in.EUBefore.GlobalContext)
	g.line(&b, "- EU nachher: Kohäsion=%d%%, Kontext=%q", in.EUAfter.Cohesion, in.EUAfter.GlobalContext)
	b.WriteString("\n- Außenmächte:\n")
	b.WriteString(externalLines(in.External))
	b.WriteString("\n\n- Innenpolitik:\n")
	b.WriteString(domesticLines(in.Domestic))
	b.WriteString("\n\n- Gewählte Aktionen:\n")
	b.WriteString(ChoiceLines(in.Choices))
	b.WriteString("\n\n- Ergebnis (Deltas, als JSON-Objekt):\n")
	b.WriteString(resolutionJSON(in.Resolution))

	b.WriteString("\n\nRegeln:\n")
	g.line(&b, "- Gib NUR gültiges JSON zurück, Schema: %s", content.RoundSummaryContract().Schema)
	b.WriteString("- \"summary\" ist ein String mit 2-4 Bulletpoints (je Zeile mit \"- \").\n")
	b.WriteString("- Maximal ~500 Zeichen.\n")

	return content.Prompt{System: jsonOnlySystem, User: b.String(), Temperature: 0.4, TopP: defaultTopP, MaxTokens: 520}
}

func (g *German) line(b *strings.Builder, format string, args ...any) {
	b.WriteString(g.printer.Sprintf(format, args...))
	b.WriteByte('\n')
}

func (g *German) euStatus(b *strings.Builder, eu state.EU) {
	g.line(b, "- EU-Kohäsion: %d%%", eu.Cohesion)
	g.line(b, "- Threat Level: %d / 100", eu.ThreatLevel)
	g.line(b, "- Frontline Pressure: %d / 100", eu.FrontlinePressure)
	g.line(b, "- Energy Pressure: %d / 100", eu.EnergyPressure)
	g.line(b, "- Migration Pressure: %d / 100", eu.MigrationPressure)
	g.line(b, "- Disinfo Pressure: %d / 100", eu.DisinfoPressure)
	g.line(b, "- Trade War Pressure: %d / 100", eu.TradeWarPressure)
	g.line(b, "- Globaler Kontext: %s", eu.GlobalContext)
}

func (g *German) countryLine(b *strings.Builder, c Country) {
	g.line(b, "- %s (%s): Militär=%d, Stabilität=%d, Wirtschaft=%d, Diplomatie=%d, Zustimmung=%d. Ambition: %s",
		c.Display, c.Key,
		c.Metrics.Military, c.Metrics.Stability, c.Metrics.Economy,
		c.Metrics.DiplomaticInfluence, c.Metrics.PublicApproval,
		c.Ambition)
}

// ChoiceLines renders locked choices one per line.
func ChoiceLines(choices []Choice) string {
	if len(choices) == 0 {
		return noMemory
	}
	lines := make([]string, len(choices))
	for i, c := range choices {
		lines[i] = "- " + c.Display + " (" + c.Country + "): " + string(c.Variant) + " -> " + c.Text
	}
	return strings.Join(lines, "\n")
}

// memory renders summaries oldest first.
func (g *German) memory(summaries []state.Summary) string {
	if len(summaries) == 0 {
		return noMemory
	}
	ordered := slices.Clone(summaries)
	slices.Reverse(ordered)
	lines := make([]string, len(ordered))
	for i, s := range ordered {
		lines[i] = g.printer.Sprintf("- Runde %d: %s", s.Round, s.Text)
	}
	return strings.Join(lines, "\n")
}

func externalLines(events []state.ExternalEvent) string {
	if len(events) == 0 {
		return noMemory
	}
	lines := make([]string, len(events))
	for i, e := range events {
		line := "- " + string(e.Actor) + ": " + e.Headline
		if q := strings.TrimSpace(e.Quote); q != "" {
			line += " (\"" + q + "\")"
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}

func domesticLines(events []state.DomesticEvent) string {
	if len(events) == 0 {
		return noMemory
	}
	lines := make([]string, len(events))
	for i, e := range events {
		lines[i] = "- " + e.Country + ": " + e.Headline
	}
	return strings.Join(lines, "\n")
}

func resolutionJSON(r content.RoundResolution) string {
	lands := make(map[string]map[string]int, len(r.Deltas))
	for country, d := range r.Deltas {
		lands[country] = d.ToMap()
	}
	out, err := json.Marshal(map[string]any{
		"eu":      map[string]any{"kohäsion_delta": r.CohesionDelta, "global_context": r.GlobalContext},
		"länder":  lands,
		"notizen": r.Notes,
	})
	if err != nil {
		return "{}"
	}
	return string(out)
}

func schema(b *strings.Builder, s string) {
	b.WriteString("\nSchema:\n")
	b.WriteString(strings.TrimSpace(s))
}
