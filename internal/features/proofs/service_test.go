package proofs

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"

	"healcoins.app/ledger/internal/common"
	"healcoins.app/ledger/internal/features/ledger"
)

type fakePresigner struct {
	key         string
	contentType string
	ttl         time.Duration
	err         error
}

func (p *fakePresigner) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.key, p.contentType, p.ttl = key, contentType, ttl
	return "https://storage.example/" + key + "?sig=1", nil
}

func setup(t *testing.T, presigner Presigner) (*Service, *ledger.MemoryStore, string) {
	t.Helper()
	store := ledger.NewMemoryStore()
	l := ledger.New(store, &ledger.SequentialIDs{Prefix: "log"}, ledger.Options{})
	res, err := l.Credit(context.Background(), ledger.CreditRequest{
		UserID:     "u1",
		Log:        &ledger.AnimalLog{Actions: []string{"rescue"}, KindnessScore: 15},
		Moderation: &ledger.ModerationEntry{CoinsToAward: 15},
	})
	require.NoError(t, err)

	svc := NewService(store, presigner, &ledger.SequentialIDs{Prefix: "obj"}, 15*time.Minute)
	return svc, store, ledger.BaseOf(res.Log).ID
}

func TestUploadURL(t *testing.T) {
	p := &fakePresigner{}
	svc, store, logID := setup(t, p)
	ctx := context.Background()

	res, err := svc.UploadURL(ctx, "u1", UploadInput{
		UserID: "u1", LogID: logID, Filename: "../My Cat (1).JPG", ContentType: "image/jpeg",
	})
	require.NoError(t, err)

	want := "animal-proofs/u1/" + logID + "/obj-1-My_Cat__1_.JPG"
	assert.Equal(t, want, res.StoragePath)
	assert.Equal(t, want, p.key)
	assert.Equal(t, "image/jpeg", p.contentType)
	assert.Equal(t, 15*time.Minute, p.ttl)
	assert.Contains(t, res.UploadURL, want)

	l, err := store.GetAnimalLog(ctx, logID)
	require.NoError(t, err)
	assert.Equal(t, []string{want}, l.ProofPaths)
}

func TestUploadURL_Rejections(t *testing.T) {
	svc, _, logID := setup(t, &fakePresigner{})
	ctx := context.Background()

	cases := []struct {
		name   string
		caller string
		in     UploadInput
		code   codes.Code
	}{
		{"gif", "u1", UploadInput{UserID: "u1", LogID: logID, Filename: "a.gif", ContentType: "image/gif"}, codes.InvalidArgument},
		{"no log", "u1", UploadInput{UserID: "u1", Filename: "a.png", ContentType: "image/png"}, codes.InvalidArgument},
		{"no filename", "u1", UploadInput{UserID: "u1", LogID: logID, ContentType: "image/png"}, codes.InvalidArgument},
		{"long filename", "u1", UploadInput{UserID: "u1", LogID: logID, Filename: strings.Repeat("a", 5000) + ".png", ContentType: "image/png"}, codes.InvalidArgument},
		{"other caller", "u2", UploadInput{UserID: "u1", LogID: logID, Filename: "a.png", ContentType: "image/png"}, codes.PermissionDenied},
		{"foreign log", "u2", UploadInput{UserID: "u2", LogID: logID, Filename: "a.png", ContentType: "image/png"}, codes.PermissionDenied},
		{"missing log", "u1", UploadInput{UserID: "u1", LogID: "nope", Filename: "a.png", ContentType: "image/png"}, codes.NotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.UploadURL(ctx, tc.caller, tc.in)
			assert.Equal(t, tc.code, common.CodeOf(err))
		})
	}
}

func TestUploadURL_FilenameLengthLimit(t *testing.T) {
	svc, store, logID := setup(t, &fakePresigner{})
	ctx := context.Background()

	_, err := svc.UploadURL(ctx, "u1", UploadInput{
		UserID: "u1", LogID: logID, Filename: strings.Repeat("к", 197) + ".png", ContentType: "image/png",
	})
	assert.ErrorIs(t, err, common.ErrFilenameTooLong)

	res, err := svc.UploadURL(ctx, "u1", UploadInput{
		UserID: "u1", LogID: logID, Filename: strings.Repeat("a", 196) + ".png", ContentType: "image/png",
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(res.StoragePath)-len("animal-proofs/u1/"+logID+"/obj-1-"), maxFilenameLen)

	l, err := store.GetAnimalLog(ctx, logID)
	require.NoError(t, err)
	assert.Len(t, l.ProofPaths, 1)
}

func TestUploadURL_PresignFailureDoesNotAttach(t *testing.T) {
	svc, store, logID := setup(t, &fakePresigner{err: errors.New("boom")})

	_, err := svc.UploadURL(context.Background(), "u1", UploadInput{
		UserID: "u1", LogID: logID, Filename: "a.webp", ContentType: "image/webp",
	})
	assert.Equal(t, codes.Internal, common.CodeOf(err))

	l, err := store.GetAnimalLog(context.Background(), logID)
	require.NoError(t, err)
	assert.Empty(t, l.ProofPaths)
}

func TestUploadURL_Disabled(t *testing.T) {
	svc, _, logID := setup(t, nil)

	_, err := svc.UploadURL(context.Background(), "u1", UploadInput{
		UserID: "u1", LogID: logID, Filename: "a.png", ContentType: "image/png",
	})
	assert.ErrorIs(t, err, common.ErrUploadsDisabled)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "photo.png", SanitizeFilename("photo.png"))
	assert.Equal(t, "evil.png", SanitizeFilename(`C:\tmp\evil.png`))
	assert.Equal(t, "proof", SanitizeFilename(".."))
	assert.Equal(t, "____.jpg", SanitizeFilename("кот!.jpg"))
}
