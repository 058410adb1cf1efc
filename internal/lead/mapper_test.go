package lead

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestFromRow_Defaults(t *testing.T) {
	now := time.Now().UTC()
	l := FromRow(Row{
		ID:             "lead-1",
		OwnerID:        "owner-1",
		PlaceID:        "place-1",
		Classification: "whatever",
		Status:         "???",
		CreatedAt:      now,
		UpdatedAt:      now,
	})

	assert.Equal(t, ClassificationCold, l.Classification)
	assert.Equal(t, StatusNew, l.Status)
	assert.Empty(t, l.Name)
	assert.Empty(t, l.Phone)
	assert.Nil(t, l.Verification)
	assert.Nil(t, l.FirstContactAt)
}

func TestFromRow_LegacyTierVocabulary(t *testing.T) {
	tests := map[string]Classification{
		"QUENTE": ClassificationHot,
		"morno":  ClassificationWarm,
		"FRIO":   ClassificationCold,
		"hot":    ClassificationHot,
		"cool":   ClassificationCool,
	}
	for raw, want := range tests {
		assert.Equal(t, want, ParseClassification(raw), "raw %q", raw)
	}
}

func TestFromRow_NormalizesPhone(t *testing.T) {
	l := FromRow(Row{ID: "x", Phone: strPtr("+55 (11) 99888-7766")})
	assert.Equal(t, "5511998887766", l.Phone)
}

func TestFromRow_Verification(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := FromRow(Row{
		ID:             "x",
		GoogleAds:      true,
		MetaPixel:      true,
		MarketingLevel: strPtr("BASIC"),
		MarketingBonus: 12,
		Opportunity:    strPtr("basic tracking only, good opportunity"),
		Verified:       true,
		VerifiedAt:     &at,
	})
	require.NotNil(t, l.Verification)
	assert.True(t, l.Verification.GoogleAds)
	assert.Equal(t, LevelBasic, l.Verification.Level)
	assert.Equal(t, 12, l.Verification.Bonus)
	assert.Equal(t, at, l.Verification.VerifiedAt)
	assert.True(t, l.Verification.HasActiveAds())
}

func TestFromRow_UnverifiedIgnoresFlags(t *testing.T) {
	// Flags left over from a reset verification must not resurface.
	l := FromRow(Row{ID: "x", GoogleAds: true, Verified: false})
	assert.Nil(t, l.Verification)
}

func TestToRow_RoundTrip(t *testing.T) {
	at := time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC)
	orig := Lead{
		ID:             "lead-9",
		OwnerID:        "owner-2",
		PlaceID:        "place-9",
		RunID:          "run-3",
		Name:           "Padaria Dois Irmãos",
		City:           "São Paulo",
		Phone:          "+55 11 3333-4444",
		HasWhatsApp:    true,
		Website:        "https://padaria.com.br",
		Score:          80,
		Classification: ClassificationHot,
		Status:         StatusContacted,
		FirstContactAt: &at,
		Verification: &Verification{
			GoogleAnalytics: true,
			Level:           LevelBasic,
			Bonus:           12,
			VerifiedAt:      at,
		},
		CreatedAt: at,
		UpdatedAt: at,
	}

	back := FromRow(ToRow(orig))
	assert.Equal(t, orig.ID, back.ID)
	assert.Equal(t, "551133334444", back.Phone)
	assert.Equal(t, orig.Classification, back.Classification)
	assert.Equal(t, orig.Status, back.Status)
	require.NotNil(t, back.Verification)
	assert.Equal(t, orig.Verification.Level, back.Verification.Level)
	assert.Equal(t, orig.Verification.Bonus, back.Verification.Bonus)
	require.NotNil(t, back.FirstContactAt)
	assert.Equal(t, at, *back.FirstContactAt)
}

func TestToRow_EmptyEnumsGetDefaults(t *testing.T) {
	r := ToRow(Lead{ID: "x"})
	assert.Equal(t, string(ClassificationCold), r.Classification)
	assert.Equal(t, string(StatusNew), r.Status)
	assert.Nil(t, r.Name)
	assert.Nil(t, r.Website)
}

func TestNormalizePhone(t *testing.T) {
	tests := map[string]string{
		"+55 (11) 98765-4321": "5511987654321",
		"11 3333 4444":        "1133334444",
		"":                    "",
		"sem telefone":        "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizePhone(in), "input %q", in)
	}
}

func TestCityKey(t *testing.T) {
	assert.Equal(t, "sao paulo", CityKey("São Paulo"))
	assert.Equal(t, "sao paulo", CityKey("  sao paulo "))
	assert.Equal(t, "brasilia", CityKey("Brasília"))
	assert.Equal(t, CityKey("São José dos Campos"), CityKey("sao jose dos campos"))
}
