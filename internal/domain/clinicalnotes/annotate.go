package clinicalnotes

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// keywords are written folded: lower case, no accents.
var keywords = map[string][]string{
	KindMedications: {
		"medicacao", "medicamento", "antibiotico", "antibioticoterapia", "comprimido", "ampola",
		"prescrito", "prescrita", "posologia", "dose",
	},
	KindComplication: {
		"complicacao", "sepse", "choque", "piora", "insuficiencia", "hemorragia", "sangramento",
		"parada cardiorrespiratoria", "intubacao",
	},
	KindSymptoms: {
		"dor", "febre", "febril", "nausea", "vomito", "tosse", "dispneia", "cefaleia", "diarreia",
		"prurido",
	},
	KindDiet: {
		"dieta", "jejum", "enteral", "parenteral", "sne", "sng", "gastrostomia", "via oral",
	},
	KindDialysis: {
		"dialise", "hemodialise", "hemodialitico", "dialitico", "crrt", "capd", "hemodiafiltracao",
	},
	KindAllergy: {
		"alergia", "alergico", "alergica", "alergias", "reacao alergica", "hipersensibilidade",
	},
	KindConduct: {
		"conduta", "manter", "suspender", "iniciar", "solicitar", "solicito", "programar", "reavaliar",
	},
	KindSigns: {
		"sinais vitais", "pa", "fc", "fr", "spo2", "saturacao", "temperatura", "tax", "hgt", "glicemia",
	},
	KindInfo: {
		"orientado", "orientada", "familiares", "familia", "acompanhante", "informado", "informada",
	},
	KindNames: {
		"dr", "dra", "enf", "enfermeira", "enfermeiro", "medico", "medica", "farmaceutico",
	},
}

type phrase struct {
	kind  string
	words []string
}

var phrases = compile(keywords)

func compile(src map[string][]string) []phrase {
	var out []phrase
	for _, kind := range Kinds {
		for _, kw := range src[kind] {
			out = append(out, phrase{kind: kind, words: strings.Fields(kw)})
		}
	}
	return out
}

// Fold lower cases s and strips its diacritics, so "Diálise" and "DIALISE"
// compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC, cases.Fold())
	out, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

func tokens(folded string) []string {
	return strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Annotate counts keyword matches per kind. Every kind is present in the
// result, possibly with zero.
func Annotate(text string) map[string]int {
	counts := make(map[string]int, len(Kinds))
	for _, k := range Kinds {
		counts[k] = 0
	}
	words := tokens(Fold(text))
	for i := range words {
		for _, p := range phrases {
			if matchAt(words, i, p.words) {
				counts[p.kind]++
			}
		}
	}
	return counts
}

func matchAt(words []string, i int, want []string) bool {
	if i+len(want) > len(words) {
		return false
	}
	for j, w := range want {
		if words[i+j] != w {
			return false
		}
	}
	return true
}

func mentions(sentence, kind string) bool {
	words := tokens(Fold(sentence))
	for _, p := range phrases {
		if p.kind != kind {
			continue
		}
		for i := range words {
			if matchAt(words, i, p.words) {
				return true
			}
		}
	}
	return false
}

// abbreviations end in a period without ending the sentence.
var abbreviations = map[string]bool{
	"dr": true, "dra": true, "sr": true, "sra": true, "prof": true,
	"obs": true, "aprox": true, "ex": true,
}

func endsWithAbbreviation(prefix []rune) bool {
	fields := strings.Fields(string(prefix))
	if len(fields) == 0 {
		return false
	}
	return abbreviations[Fold(fields[len(fields)-1])]
}

// Sentences splits text on sentence punctuation and line breaks. A period
// ends a sentence only before whitespace or the end of text, so decimals
// such as "2.5 mg" and abbreviations such as "Dr." stay inside it.
func Sentences(text string) []string {
	rs := []rune(text)
	var out []string
	start := 0
	emit := func(end int) {
		if p := strings.TrimSpace(string(rs[start:end])); p != "" {
			out = append(out, p)
		}
		start = end + 1
	}
	for i, r := range rs {
		switch r {
		case '!', '?', ';', '\n':
		case '.':
			if i+1 < len(rs) && !unicode.IsSpace(rs[i+1]) {
				continue
			}
			if endsWithAbbreviation(rs[start:i]) {
				continue
			}
		default:
			continue
		}
		emit(i)
	}
	if start < len(rs) {
		emit(len(rs))
	}
	return out
}

// excerpt keeps up to max sentences of text that mention kind.
func excerpt(text, kind string, max int) []string {
	var out []string
	for _, s := range Sentences(text) {
		if mentions(s, kind) {
			out = append(out, s)
			if len(out) == max {
				break
			}
		}
	}
	return out
}
