package e2e

import (
	"bytes"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"testing"
)

// mediaRequest builds a multipart/form-data upload with the given part.
func mediaRequest(t *testing.T, contentType, filename string, data []byte, fields map[string]string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = writer.WriteField(k, v)
	}

	partHeader := make(textproto.MIMEHeader)
	partHeader.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	partHeader.Set("Content-Type", contentType)
	part, err := writer.CreatePart(partHeader)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	_, _ = part.Write(data)
	writer.Close()

	req, err := http.NewRequest(http.MethodPost, "/api/uploads/media", &buf)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestUploadMedia_Image(t *testing.T) {
	ta := setupApp(t)

	resp, err := ta.app.Test(mediaRequest(t, "image/png", "photo.png", pngBytes(t), nil), -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, readBody(t, resp))
	}

	result := parseJSON(t, resp)
	if result["kind"] != "image" {
		t.Errorf("expected kind image, got %v", result["kind"])
	}
	url, _ := result["fileUrl"].(string)
	if !strings.HasPrefix(url, "https://media.test/media/image/") || !strings.HasSuffix(url, ".png") {
		t.Errorf("unexpected fileUrl %q", url)
	}
	if ta.storage.len() != 1 {
		t.Errorf("expected one stored object, got %d", ta.storage.len())
	}
}

func TestUploadMedia_Video(t *testing.T) {
	ta := setupApp(t)

	req := mediaRequest(t, "video/mp4", "tour.mp4", make([]byte, 2048), map[string]string{"duration": "12.5"})
	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, readBody(t, resp))
	}
	if d := parseJSON(t, resp)["duration"]; d != 12.5 {
		t.Errorf("expected duration 12.5, got %v", d)
	}
}

func TestUploadMedia_Rejections(t *testing.T) {
	ta := setupApp(t)

	tests := []struct {
		name string
		req  *http.Request
	}{
		{"wrong type", mediaRequest(t, "audio/wav", "a.wav", []byte("RIFF"), nil)},
		{"video without duration", mediaRequest(t, "video/mp4", "a.mp4", make([]byte, 64), nil)},
		{"video too long", mediaRequest(t, "video/webm", "a.webm", make([]byte, 64), map[string]string{"duration": "61"})},
		{"image too large", mediaRequest(t, "image/jpeg", "a.jpg", make([]byte, 5*1024*1024+1), nil)},
		{"image not decodable", mediaRequest(t, "image/png", "a.png", []byte("not a png"), nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := ta.app.Test(tt.req, -1)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			assertStatus(t, resp, http.StatusBadRequest)
		})
	}
	if ta.storage.len() != 0 {
		t.Errorf("expected nothing stored, got %d objects", ta.storage.len())
	}
}

func TestDeleteMedia(t *testing.T) {
	ta := setupApp(t)

	resp, err := ta.app.Test(mediaRequest(t, "image/png", "photo.png", pngBytes(t), nil), -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, readBody(t, resp))
	}
	id, _ := parseJSON(t, resp)["id"].(string)

	resp, err = doRequest(ta.app, http.MethodDelete, "/api/uploads/media/image/"+id+".png", "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusNoContent)
	if ta.storage.len() != 0 {
		t.Errorf("expected the object deleted, %d left", ta.storage.len())
	}
}

func TestDeleteMedia_Rejections(t *testing.T) {
	ta := setupApp(t)

	tests := []struct {
		name string
		path string
	}{
		{"unknown kind", "/api/uploads/media/audio/9f1c2a4e-3b5d-4c6e-8f70-1a2b3c4d5e6f.wav"},
		{"extension of other kind", "/api/uploads/media/image/9f1c2a4e-3b5d-4c6e-8f70-1a2b3c4d5e6f.mp4"},
		{"id not a uuid", "/api/uploads/media/video/not-a-uuid.mp4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := doRequest(ta.app, http.MethodDelete, tt.path, "", nil)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			assertStatus(t, resp, http.StatusBadRequest)
		})
	}
}
