package service

import (
	"fmt"
	"time"

	"github.com/mi42hq/mi42/internal/briefing/domain"
)

const briefingSystemPrompt = `Du bist der Redaktions-Assistent von Mi42, einer Marktintelligenz-Plattform für den Baustoff-Fachhandel in Deutschland. Du erstellst prägnante, faktenorientierte Briefings für Entscheider im Baustoffhandel. Schreibe auf Deutsch, strukturiert mit Überschriften und Stichpunkten, ohne Füllsätze.`

func scheduledPrompts(briefingType domain.BriefingType, now time.Time) (title, userPrompt string, err error) {
	switch briefingType {
	case domain.TypeDaily:
		title = fmt.Sprintf("Tägliches Marktbriefing – %s", now.Format("02.01.2006"))
		userPrompt = fmt.Sprintf(`Erstelle das tägliche Marktbriefing für den %s.

Behandle kurz und aktuell:
1. Baustoffpreise und auffällige Preisbewegungen (Holz, Dämmstoffe, Zement, Stahl)
2. Relevante Branchennachrichten aus Bauwirtschaft und Baustoffhandel
3. Konjunktur- und Baugenehmigungsindikatoren, sofern neue Zahlen vorliegen
4. Eine kurze Einschätzung: worauf sollten Händler heute achten?`, now.Format("02.01.2006"))
		return title, userPrompt, nil
	case domain.TypeWeekly:
		year, week := now.ISOWeek()
		title = fmt.Sprintf("Wöchentliche Marktanalyse – KW %d/%d", week, year)
		userPrompt = fmt.Sprintf(`Erstelle die wöchentliche Marktanalyse für Kalenderwoche %d/%d.

Gliedere ausführlicher als im Tagesbriefing:
1. Rückblick: die wichtigsten Entwicklungen der vergangenen Woche im Baustoffmarkt
2. Preistrends über die Woche mit kurzer Einordnung
3. Nachfrage-Signale aus Hochbau, Tiefbau und Sanierung
4. Ausblick auf die kommende Woche mit konkreten Handlungsempfehlungen für den Fachhandel`, week, year)
		return title, userPrompt, nil
	default:
		return "", "", fmt.Errorf("%w: %q", domain.ErrUnknownType, briefingType)
	}
}
