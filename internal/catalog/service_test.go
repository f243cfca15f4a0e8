package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Atardecer en la Bahía", "atardecer-en-la-bahia"},
		{"  Sueño #3 (óleo)  ", "sueno-3-oleo"},
		{"NIÑA con Ñandú", "nina-con-nandu"},
		{"---", ""},
		{"Already-Slugged", "already-slugged"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}
