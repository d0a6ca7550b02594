package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSearchTerm(t *testing.T) {
	cases := []struct {
		query string
		want  string
	}{
		{"phone number of Rajib Bhowmik", "Rajib Bhowmik"},
		{"what is the email address of Farhana Akter", "Farhana Akter"},
		{"who is Tanvir Hasan", "Tanvir Hasan"},
		{"find Nusrat Jahan", "Nusrat Jahan"},
		{"Rajib Bhowmik phone number", "Rajib Bhowmik"},
		{"can you find me the extension of Tanvir Hasan", "Tanvir Hasan"},
		{"  Rajib   Bhowmik  ", "Rajib Bhowmik"},
		{"EB1024", "EB1024"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, SearchTerm(tc.query), tc.query)
	}
}
