package crawler

import (
	"fmt"
	"io"
	"strings"

	"github.com/macabanto/wordnet/internal/model"

	"github.com/PuerkitoBio/goquery"
)

var posCleaner = strings.NewReplacer("(", "", ")", "")

// ParseEntries extracts the senses of a term from a thesaurus page.
//
// A page without the British thesaurus block yields zero entries, which the
// caller treats as "nothing to persist" rather than an error. Synonyms are
// kept in page order, multiword ones hyphen-joined the way the site renders
// them; normalization back to spaces happens in the expander.
func ParseEntries(term string, r io.Reader) ([]model.Entry, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	british := doc.Find("div.blockThes-british").First()
	if british.Length() == 0 {
		return nil, nil
	}

	var entries []model.Entry
	british.Find("div.sense.opened.moreAnt.moreSyn").Each(func(_ int, sense *goquery.Selection) {
		pos := posCleaner.Replace(strings.TrimSpace(sense.Find("span.headerSensePos").First().Text()))
		if pos == "" {
			pos = "unknown"
		}

		definition := strings.TrimSpace(sense.Find(".def").First().Text())
		if definition == "" {
			definition = "no definition"
		}

		var synonyms []string
		sense.Find("div.form.type-syn span.orth").Each(func(_ int, orth *goquery.Selection) {
			text := strings.TrimSpace(orth.Text())
			if text == "" {
				return
			}
			synonyms = append(synonyms, strings.ReplaceAll(text, " ", "-"))
		})

		entries = append(entries, model.Entry{
			Term:         term,
			PartOfSpeech: pos,
			Definition:   definition,
			Synonyms:     synonyms,
		})
	})

	return entries, nil
}
