package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskDSN(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
		want string
	}{
		{
			name: "url with password",
			dsn:  "postgres://audit:s3cret@db:5432/registry?sslmode=disable",
			want: "postgres://audit:xxxxx@db:5432/registry?sslmode=disable",
		},
		{
			name: "url without password",
			dsn:  "postgres://db:5432/registry",
			want: "postgres://db:5432/registry",
		},
		{
			name: "key value dsn",
			dsn:  "host=db user=audit password=s3cret dbname=registry",
			want: "***",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, maskDSN(tt.dsn))
		})
	}
}
