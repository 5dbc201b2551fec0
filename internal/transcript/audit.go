package transcript

import (
	"strings"

	"github.com/abadojack/whatlanggo"
)

// Finding describes a column whose content does not look like its language.
type Finding struct {
	Lang     Lang
	Detected string
	Reason   string
}

var expectedLang = map[Lang]whatlanggo.Lang{
	LangEN: whatlanggo.Eng,
	LangZH: whatlanggo.Cmn,
	LangJP: whatlanggo.Jpn,
}

// Audit checks every column of the set. Generated transcripts sometimes put
// the source text in every column; findings are advisory and never block a
// study session.
func Audit(set Set) []Finding {
	var findings []Finding
	for _, lang := range Langs {
		var b strings.Builder
		for _, s := range set.Sentences {
			if text := strings.TrimSpace(s.Text.In(lang)); text != "" {
				b.WriteString(text)
				b.WriteString(" ")
			}
		}

		column := strings.TrimSpace(b.String())
		if column == "" {
			findings = append(findings, Finding{Lang: lang, Reason: "column is empty"})
			continue
		}

		info := whatlanggo.Detect(column)
		if !info.IsReliable() {
			continue
		}
		if info.Lang != expectedLang[lang] {
			findings = append(findings, Finding{
				Lang:     lang,
				Detected: info.Lang.Iso6391(),
				Reason:   "column language does not match",
			})
		}
	}
	return findings
}
