package middleware

import "testing"

// TestNormalizePath проверяет замену UUID-сегментов на {id}.
func TestNormalizePath(t *testing.T) {
	const id = "a1b2c3d4-e5f6-7890-abcd-ef1234567890"

	tests := []struct {
		name string
		path string
		want string
	}{
		{"список файлов", "/api/v1/files", "/api/v1/files"},
		{"запись по id", "/api/v1/files/" + id, "/api/v1/files/{id}"},
		{"конвертация", "/api/v1/files/" + id + "/convert", "/api/v1/files/{id}/convert"},
		{"открытие", "/api/v1/files/" + id + "/open", "/api/v1/files/{id}/open"},
		{"экспорт", "/api/v1/files/" + id + "/export", "/api/v1/files/{id}/export"},
		{"не UUID", "/api/v1/files/not-a-uuid", "/api/v1/files/not-a-uuid"},
		{"неизвестный суффикс", "/api/v1/files/" + id + "/unknown", "/api/v1/files/" + id + "/unknown"},
		{"health не трогаем", "/health/live", "/health/live"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizePath(tt.path); got != tt.want {
				t.Errorf("normalizePath(%q): хотели %q, получили %q", tt.path, tt.want, got)
			}
		})
	}
}
