package domain_test

import (
	"testing"

	"github.com/mi42hq/mi42/internal/freemium/domain"
	"github.com/stretchr/testify/assert"
)

func TestExtractDomain(t *testing.T) {
	cases := []struct {
		email string
		want  string
	}{
		{"anna@baustoff-mueller.de", "baustoff-mueller.de"},
		{"ANNA@Baustoff-Mueller.DE", "baustoff-mueller.de"},
		{"  bob@example.com  ", "example.com"},
		{"dot.ted+tag@sub.example.co.uk", "sub.example.co.uk"},
		{"no-at-sign", ""},
		{"trailing@", ""},
		{"bad@tld.x", ""},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, domain.ExtractDomain(tc.email), "email %q", tc.email)
	}
}

func TestIsFreemail(t *testing.T) {
	assert.True(t, domain.IsFreemail("gmail.com"))
	assert.True(t, domain.IsFreemail("GMX.de"))
	assert.True(t, domain.IsFreemail("t-online.de"))
	assert.False(t, domain.IsFreemail("baustoff-mueller.de"))
	assert.False(t, domain.IsFreemail(""))
}
