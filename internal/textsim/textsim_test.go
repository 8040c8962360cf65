package textsim

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFold(t *testing.T) {
	require.Equal(t, "el kontroll", Fold("  El-Kontroll! "))
	require.Equal(t, "bjorn as", Fold("Bjørn Ås"))
	require.Equal(t, "aerlige handverkere", Fold("Ærlige Håndverkere"))
	require.Equal(t, "cafe", Fold("Café"))
}

func TestKey(t *testing.T) {
	require.Equal(t, Key("El-Kontroll"), Key("elkontroll"))
	require.Equal(t, "storgata1", Key("Storgata 1"))
}

func TestSimilarity(t *testing.T) {
	require.Equal(t, 1.0, Similarity("storgata 1", "storgata 1"))
	require.InDelta(t, 0.9, Similarity("sprinklera", "sprinklerc"), 1e-9)
	require.Equal(t, 0.0, Similarity("", ""))
	require.Less(t, Similarity("storgata 1", "kirkegata 12"), 0.7)
}
