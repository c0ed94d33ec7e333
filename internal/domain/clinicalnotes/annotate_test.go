package clinicalnotes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	assert.Equal(t, "dialise", Fold("Diálise"))
	assert.Equal(t, "hemodialise", Fold("HEMODIÁLISE"))
	assert.Equal(t, "reacao alergica", Fold("Reação Alérgica"))
	assert.Equal(t, "nausea", Fold("náusea"))
}

func TestAnnotate(t *testing.T) {
	counts := Annotate("Paciente em HEMODIÁLISE. Refere dor e náusea. Alergia a dipirona, reação alérgica prévia.")

	assert.Len(t, counts, len(Kinds))
	assert.Equal(t, 1, counts[KindDialysis])
	assert.Equal(t, 2, counts[KindSymptoms])
	// "alergia", "reacao alergica" and "alergica"
	assert.Equal(t, 3, counts[KindAllergy])
	assert.Equal(t, 0, counts[KindDiet])
}

func TestAnnotate_WholeWordsOnly(t *testing.T) {
	counts := Annotate("Dorme bem, padrão respiratório estável")
	assert.Equal(t, 0, counts[KindSymptoms], "dor must not match dorme")
	assert.Equal(t, 0, counts[KindSigns], "pa must not match padrao")
}

func TestSentences(t *testing.T) {
	got := Sentences("Manter dieta.  Suspender jejum!\nReavaliar amanhã;  ")
	assert.Equal(t, []string{"Manter dieta", "Suspender jejum", "Reavaliar amanhã"}, got)
	assert.Empty(t, Sentences(" . \n"))
}

func TestSentences_KeepsDecimalsAndAbbreviations(t *testing.T) {
	got := Sentences("Dr. Silva prescreveu 2.5 mg de varfarina. Reavaliar INR em 3 dias.")
	assert.Equal(t, []string{"Dr. Silva prescreveu 2.5 mg de varfarina", "Reavaliar INR em 3 dias"}, got)
	assert.Equal(t, []string{"Dose 0.5 g", "Manter"}, Sentences("Dose 0.5 g.\nManter"))
}

func TestExcerpt(t *testing.T) {
	text := "Paciente estável. Dieta via oral liberada. Febre ontem. Manter jejum para exame. Dieta zero amanhã."
	assert.Equal(t, []string{"Dieta via oral liberada", "Manter jejum para exame"}, excerpt(text, KindDiet, 2))
	assert.Empty(t, excerpt(text, KindDialysis, 3))
}
