package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/letter-service/internal/domain"
	"github.com/spec-kit/letter-service/internal/events"
	"github.com/spec-kit/letter-service/internal/repository"
	apperrors "github.com/spec-kit/letter-service/pkg/util/errorutil"
)

func newWorkflow(repo repository.LetterRepository, blobs *memBlobs, dispatcher events.Dispatcher) *ReplyWorkflow {
	return NewReplyWorkflow(ReplyDependencies{
		LetterRepo: repo,
		Blobs:      blobs,
		Dispatcher: dispatcher,
		Clock:      func() time.Time { return time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC) },
	})
}

func upload(name, body string) Upload {
	return Upload{FileName: name, ContentType: "application/pdf", Size: int64(len(body)), Body: strings.NewReader(body)}
}

func TestParseReplyDate(t *testing.T) {
	cases := map[string]time.Time{
		"2024-05-01":                time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		"2024-05-01T10:30":          time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC),
		" 2024-05-01T10:30:15 ":     time.Date(2024, 5, 1, 10, 30, 15, 0, time.UTC),
		"2024-05-01T10:30:15+05:30": time.Date(2024, 5, 1, 5, 0, 15, 0, time.UTC),
	}
	for raw, want := range cases {
		got, err := ParseReplyDate(raw, nil)
		require.NoError(t, err, raw)
		assert.True(t, want.Equal(got), raw)
	}
	for _, raw := range []string{"", "yesterday", "2024-13-01", "01/05/2024"} {
		_, err := ParseReplyDate(raw, nil)
		assert.Error(t, err, raw)
	}
}

func TestSubmit_OutOfSectorIsDeniedWithoutSideEffects(t *testing.T) {
	repo := newFakeLetterRepo(letter("S1", domain.SectorIncome, day(2024, 1, 1)))
	blobs := newMemBlobs()
	wf := newWorkflow(repo, blobs, nil)

	_, err := wf.Submit(context.Background(), sectorActor(domain.SectorHealth), "S1", ReplyRequest{
		MarkReplied: true,
		RepliedAt:   "2024-05-01",
		Attachments: map[int]Upload{1: upload("a.pdf", "x")},
	})
	require.True(t, apperrors.HasCode(err, apperrors.CodeAccessDenied))

	stored := repo.get("S1")
	assert.False(t, stored.Reply.IsReplied())
	assert.Empty(t, stored.Attachments)
	assert.Zero(t, blobs.puts)
}

func TestSubmit_SuperuserMustUseAdmin(t *testing.T) {
	repo := newFakeLetterRepo(letter("S1", domain.SectorIncome, day(2024, 1, 1)))
	_, err := newWorkflow(repo, newMemBlobs(), nil).Submit(context.Background(), superActor(), "S1", ReplyRequest{MarkReplied: true, RepliedAt: "2024-05-01"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAccessDenied))
}

func TestSubmit_MissingLetterIsNotFound(t *testing.T) {
	_, err := newWorkflow(newFakeLetterRepo(), newMemBlobs(), nil).Submit(context.Background(), sectorActor(domain.SectorIncome), "nope", ReplyRequest{MarkReplied: true, RepliedAt: "2024-05-01"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestSubmit_ReplyDateValidation(t *testing.T) {
	repo := newFakeLetterRepo(letter("S1", domain.SectorIncome, day(2024, 1, 1)))
	blobs := newMemBlobs()
	wf := newWorkflow(repo, blobs, nil)
	actor := sectorActor(domain.SectorIncome)

	for _, raw := range []string{"", "not-a-date"} {
		_, err := wf.Submit(context.Background(), actor, "S1", ReplyRequest{
			MarkReplied: true,
			RepliedAt:   raw,
			Attachments: map[int]Upload{2: upload("b.pdf", "y")},
		})
		var de *apperrors.DomainError
		require.True(t, errors.As(err, &de), raw)
		assert.Equal(t, apperrors.CodeValidation, de.Code)
		assert.Contains(t, de.Details["fields"], "replied_at")
	}

	stored := repo.get("S1")
	assert.False(t, stored.Reply.IsReplied())
	assert.Empty(t, stored.Attachments)
	assert.Zero(t, blobs.puts)
}

func TestSubmit_InvalidSlotRejected(t *testing.T) {
	repo := newFakeLetterRepo(letter("S1", domain.SectorIncome, day(2024, 1, 1)))
	_, err := newWorkflow(repo, newMemBlobs(), nil).Submit(context.Background(), sectorActor(domain.SectorIncome), "S1", ReplyRequest{
		Attachments: map[int]Upload{7: upload("c.pdf", "z")},
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestSubmit_TransitionIsIdempotent(t *testing.T) {
	repo := newFakeLetterRepo(letter("S1", domain.SectorHealth, day(2024, 1, 1)))
	dispatcher := &recordingDispatcher{}
	wf := newWorkflow(repo, newMemBlobs(), dispatcher)
	actor := sectorActor(domain.SectorHealth)

	res, err := wf.Submit(context.Background(), actor, "S1", ReplyRequest{MarkReplied: true, RepliedAt: "2024-05-01T09:00"})
	require.NoError(t, err)
	assert.True(t, res.Transitioned)
	assert.False(t, res.AlreadyReplied)
	first, ok := repo.get("S1").Reply.At()
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), first)

	res, err = wf.Submit(context.Background(), actor, "S1", ReplyRequest{MarkReplied: true, RepliedAt: "2024-06-30"})
	require.NoError(t, err)
	assert.False(t, res.Transitioned)
	assert.True(t, res.AlreadyReplied)
	second, _ := repo.get("S1").Reply.At()
	assert.Equal(t, first, second)

	assert.Equal(t, []events.EventType{events.EventLetterReplied}, dispatcher.types())
}

func TestSubmit_OnlySuppliedSlotsAreOverwritten(t *testing.T) {
	l := letter("2024/A/000001", domain.SectorHealth, day(2024, 1, 1))
	l.Attachments = domain.Attachments{
		1: {Slot: 1, StorageKey: "letters/old/slot1", FileName: "keep.pdf"},
		2: {Slot: 2, StorageKey: "letters/old/slot2", FileName: "old.pdf"},
	}
	repo := newFakeLetterRepo(l)
	blobs := newMemBlobs()
	ctx := context.Background()
	require.NoError(t, blobs.LocalStore.Put(ctx, "letters/old/slot1", strings.NewReader("1"), 1, ""))
	require.NoError(t, blobs.LocalStore.Put(ctx, "letters/old/slot2", strings.NewReader("2"), 1, ""))
	dispatcher := &recordingDispatcher{}
	wf := newWorkflow(repo, blobs, dispatcher)

	res, err := wf.Submit(ctx, sectorActor(domain.SectorHealth), "2024/A/000001", ReplyRequest{
		Attachments: map[int]Upload{2: upload("new.pdf", "fresh"), 5: upload("extra.png", "img")},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 5}, res.UpdatedSlots)
	assert.False(t, res.Transitioned)

	stored := repo.get("2024/A/000001")
	assert.Equal(t, []int{1, 2, 5}, stored.Attachments.Slots())
	assert.Equal(t, "keep.pdf", stored.Attachments[1].FileName)
	assert.Equal(t, "new.pdf", stored.Attachments[2].FileName)
	assert.False(t, stored.Reply.IsReplied())

	assert.True(t, blobs.exists("letters/old/slot1"))
	assert.False(t, blobs.exists("letters/old/slot2"))
	assert.True(t, blobs.exists(stored.Attachments[2].StorageKey))

	rc, err := blobs.Open(ctx, stored.Attachments[5].StorageKey)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "img", string(data))

	assert.Equal(t, []events.EventType{events.EventLetterAttachmentsUpdated}, dispatcher.types())
}

func TestSubmit_ReplacedBlobDeleteFailureIsReported(t *testing.T) {
	l := letter("S1", domain.SectorHealth, day(2024, 1, 1))
	l.Attachments = domain.Attachments{1: {Slot: 1, StorageKey: "letters/old/slot1", FileName: "old.pdf"}}
	repo := newFakeLetterRepo(l)
	blobs := newMemBlobs()
	ctx := context.Background()
	require.NoError(t, blobs.LocalStore.Put(ctx, "letters/old/slot1", strings.NewReader("1"), 1, ""))
	blobs.failDelete = true

	res, err := newWorkflow(repo, blobs, nil).Submit(ctx, sectorActor(domain.SectorHealth), "S1", ReplyRequest{
		MarkReplied: true,
		RepliedAt:   "2024-05-01",
		Attachments: map[int]Upload{1: upload("new.pdf", "fresh")},
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeResource))
	require.NotNil(t, res)
	assert.True(t, res.Transitioned)
	assert.Equal(t, "new.pdf", res.Letter.Attachments[1].FileName)

	stored := repo.get("S1")
	assert.True(t, stored.Reply.IsReplied())
	assert.Equal(t, "new.pdf", stored.Attachments[1].FileName)
	assert.True(t, blobs.exists("letters/old/slot1"))
}

func TestSubmit_FailedCommitDiscardsUploads(t *testing.T) {
	repo := newFakeLetterRepo(letter("S1", domain.SectorHealth, day(2024, 1, 1)))
	repo.updateErr = errors.New("serialization failure")
	blobs := newMemBlobs()
	wf := newWorkflow(repo, blobs, nil)

	_, err := wf.Submit(context.Background(), sectorActor(domain.SectorHealth), "S1", ReplyRequest{
		MarkReplied: true,
		RepliedAt:   "2024-05-01",
		Attachments: map[int]Upload{1: upload("a.pdf", "x")},
	})
	require.Error(t, err)
	assert.Equal(t, 1, blobs.puts)
	require.Len(t, blobs.deleted, 1)
	assert.False(t, blobs.exists(blobs.deleted[0]))
	assert.False(t, repo.get("S1").Reply.IsReplied())
}

func TestSubmit_UploadFailureIsResourceError(t *testing.T) {
	repo := newFakeLetterRepo(letter("S1", domain.SectorHealth, day(2024, 1, 1)))
	blobs := newMemBlobs()
	blobs.failPut = true

	_, err := newWorkflow(repo, blobs, nil).Submit(context.Background(), sectorActor(domain.SectorHealth), "S1", ReplyRequest{
		MarkReplied: true,
		RepliedAt:   "2024-05-01",
		Attachments: map[int]Upload{1: upload("a.pdf", "x")},
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeResource))
	assert.False(t, repo.get("S1").Reply.IsReplied())
}

func TestSubmit_SectorChangedBeforeLockIsDenied(t *testing.T) {
	repo := newFakeLetterRepo(letter("S1", domain.SectorHealth, day(2024, 1, 1)))
	wf := newWorkflow(&retargetingRepo{fakeLetterRepo: repo, to: domain.SectorIncome}, newMemBlobs(), nil)

	_, err := wf.Submit(context.Background(), sectorActor(domain.SectorHealth), "S1", ReplyRequest{MarkReplied: true, RepliedAt: "2024-05-01"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAccessDenied))
	assert.False(t, repo.get("S1").Reply.IsReplied())
}

func TestOpenAttachment(t *testing.T) {
	l := letter("S1", domain.SectorHealth, day(2024, 1, 1))
	l.Attachments = domain.Attachments{3: {Slot: 3, StorageKey: "letters/S1/slot3/x", FileName: "x.pdf"}}
	blobs := newMemBlobs()
	require.NoError(t, blobs.Put(context.Background(), "letters/S1/slot3/x", strings.NewReader("pdf"), 3, ""))
	wf := newWorkflow(newFakeLetterRepo(l), blobs, nil)

	att, rc, err := wf.OpenAttachment(context.Background(), sectorActor(domain.SectorHealth), "S1", 3)
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, "x.pdf", att.FileName)

	_, _, err = wf.OpenAttachment(context.Background(), sectorActor(domain.SectorIncome), "S1", 3)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAccessDenied))

	_, _, err = wf.OpenAttachment(context.Background(), superActor(), "S1", 4)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestOpenAttachment_MissingBlobIsNotFound(t *testing.T) {
	l := letter("S1", domain.SectorHealth, day(2024, 1, 1))
	l.Attachments = domain.Attachments{2: {Slot: 2, StorageKey: "letters/S1/slot2/gone", FileName: "gone.pdf"}}
	wf := newWorkflow(newFakeLetterRepo(l), newMemBlobs(), nil)

	_, rc, err := wf.OpenAttachment(context.Background(), sectorActor(domain.SectorHealth), "S1", 2)
	assert.Nil(t, rc)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

// retargetingRepo simulates an admin moving the letter to another sector between the
// initial read and the locked write.
type retargetingRepo struct {
	*fakeLetterRepo
	to domain.Sector
}

func (r *retargetingRepo) UpdateLocked(ctx context.Context, serial string, mutate repository.LetterMutation) (*domain.Letter, error) {
	r.mu.Lock()
	r.letters[serial].TargetSector = r.to
	r.mu.Unlock()
	return r.fakeLetterRepo.UpdateLocked(ctx, serial, mutate)
}
