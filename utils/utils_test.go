package utils

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	tok, err := m.GenerateToken("abc", "admin")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	claims, err := m.ValidateToken(tok)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.ID != "abc" || claims.Role != "admin" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestTokenRejectsOtherKeyAndExpiry(t *testing.T) {
	tok, _ := NewTokenManager("one", time.Hour).GenerateToken("abc", "admin")
	if _, err := NewTokenManager("two", time.Hour).ValidateToken(tok); err == nil {
		t.Fatal("token signed with another key accepted")
	}
	expired, _ := NewTokenManager("one", -time.Minute).GenerateToken("abc", "admin")
	if _, err := NewTokenManager("one", time.Hour).ValidateToken(expired); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("hunter2", 4)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if VerifyPassword(hash, "hunter2") != nil {
		t.Fatal("correct password rejected")
	}
	if VerifyPassword(hash, "hunter3") == nil {
		t.Fatal("wrong password accepted")
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestPreparePhotoSmallKeepsOriginal(t *testing.T) {
	data := pngBytes(t, 640, 480)
	p, err := PreparePhoto(data, "image/png")
	if err != nil {
		t.Fatalf("PreparePhoto: %v", err)
	}
	if !bytes.Equal(p.Data, data) || p.ContentType != "image/png" {
		t.Fatal("small photo should be stored as uploaded")
	}
	thumb, err := jpegSize(p.Preview)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if thumb.X > previewSize || thumb.Y > previewSize {
		t.Fatalf("preview too large: %v", thumb)
	}
}

func jpegSize(b []byte) (image.Point, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(b))
	return image.Point{X: cfg.Width, Y: cfg.Height}, err
}

func TestPreparePhotoRejects(t *testing.T) {
	if _, err := PreparePhoto([]byte("GIF89a"), "image/gif"); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("gif: %v", err)
	}
	if _, err := PreparePhoto(make([]byte, MaxPhotoSize+1), "image/png"); !errors.Is(err, ErrPhotoTooLarge) {
		t.Fatalf("oversize: %v", err)
	}
	if _, err := PreparePhoto([]byte("not an image"), "image/png"); err == nil {
		t.Fatal("garbage accepted")
	}
}

// hugePNG returns a 1x1 PNG whose header claims width x height pixels.
func hugePNG(t *testing.T, width, height uint32) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 1, 1))); err != nil {
		t.Fatal(err)
	}
	b := buf.Bytes()
	// IHDR data starts after the 8-byte signature, chunk length and type.
	binary.BigEndian.PutUint32(b[16:20], width)
	binary.BigEndian.PutUint32(b[20:24], height)
	binary.BigEndian.PutUint32(b[29:33], crc32.ChecksumIEEE(b[12:29]))
	return b
}

func TestPreparePhotoRejectsHugeDimensions(t *testing.T) {
	data := hugePNG(t, 30000, 30000)
	if len(data) > compressThreshold {
		t.Fatalf("fixture is %d bytes", len(data))
	}
	if _, err := PreparePhoto(data, "image/png"); !errors.Is(err, ErrPhotoTooLarge) {
		t.Fatalf("err = %v, want ErrPhotoTooLarge", err)
	}
}
