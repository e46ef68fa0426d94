package pagination

import "testing"

func TestToSnake(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "createdAt", want: "created_at"},
		{in: "updatedAt", want: "updated_at"},
		{in: "created_at", want: "created_at"},
		{in: "CreatedAt", want: "created_at"},
		{in: "threadID", want: "thread_id"},
		{in: "HTTPStatus", want: "http_status"},
		{in: "created-at", want: "created_at"},
		{in: "created at", want: "created_at"},
		{in: "id", want: "id"},
		{in: "a1B2", want: "a1_b2"},
		{in: "weird;column", want: "weird_column"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := toSnake(tt.in); got != tt.want {
				t.Errorf("toSnake(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
