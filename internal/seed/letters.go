// Package seed generates realistic sample letters for development databases.
package seed

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/letter-service/internal/domain"
	"github.com/spec-kit/letter-service/internal/repository"
)

var (
	firstNames = []string{
		"කමල්", "නිමල්", "සුනිල්", "අමර", "නයනා", "චම්පා",
		"රුවන්", "කුමාර", "මලිත්", "සමන්", "දීපිකා", "කාන්ති",
	}
	lastNames = []string{
		"පෙරේරා", "සිල්වා", "ප්‍රනාන්දු", "දිසානායක", "බණ්ඩාර",
		"ගුණවර්ධන", "විජේසිංහ", "කරුණාරත්න", "රාජපක්ෂ", "ජයවර්ධන",
	}
	cities = []string{
		"මැටිහක්වල", "හුණුවල - උතුර", "හුණුවල - දකුණ", "උඩවෙල", "උඩරන්වල", "ගල්කන්ද",
		"පරගහමඩිත්ත", "මල්මිකන්ද", "මීගහවෙල", "හත්තැල්ල", "දන්දෙණිය",
	}
	streets     = []string{"පන්සල පාර", "වෙල පාර", "බෝ ගහ මාවත", "සමූපකාර මාවත"}
	letterTypes = []string{
		"පැමිණිල්ල",
		"සංවර්ධන ඉල්ලීම",
		"බදු විමසීම්",
		"බලපත්‍ර අයදුම්පත",
		"සාමාන්‍ය විමසීම",
	}
	seriesCodes = []string{"A", "B", "C", "D"}
)

// Generator produces random letters with unique serials.
type Generator struct {
	rng  *rand.Rand
	now  time.Time
	used map[string]struct{}
}

// NewGenerator seeds a generator. Letters are received within the year before now.
func NewGenerator(seed uint64, now time.Time) *Generator {
	return &Generator{
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now:  now,
		used: map[string]struct{}{},
	}
}

func pick[T any](rng *rand.Rand, items []T) T {
	return items[rng.IntN(len(items))]
}

func (g *Generator) serial() string {
	for {
		s := fmt.Sprintf("2024/%s/%06d", pick(g.rng, seriesCodes), g.rng.IntN(1_000_000))
		if _, taken := g.used[s]; !taken {
			g.used[s] = struct{}{}
			return s
		}
	}
}

// Next returns a new pending or replied letter. Roughly a third are replied.
func (g *Generator) Next() *domain.Letter {
	received := time.Date(g.now.Year(), g.now.Month(), g.now.Day(), 0, 0, 0, 0, time.UTC).
		AddDate(0, 0, -g.rng.IntN(366))
	letter := &domain.Letter{
		SerialNumber:       g.serial(),
		DateReceived:       received,
		SenderName:         pick(g.rng, firstNames) + " " + pick(g.rng, lastNames),
		SenderAddress:      fmt.Sprintf("අංක %d, %s, %s", 1+g.rng.IntN(999), pick(g.rng, streets), pick(g.rng, cities)),
		LetterType:         pick(g.rng, letterTypes),
		AcceptingOfficerID: fmt.Sprintf("OFF-%d", 100+g.rng.IntN(900)),
		TargetSector:       pick(g.rng, domain.Sectors),
		AdministeredBy:     pick(g.rng, domain.OfficerRoles),
		Attachments:        domain.Attachments{},
		Reply:              domain.Pending(),
	}
	if g.rng.IntN(3) == 0 {
		letter.Reply = domain.RepliedAt(received.Add(time.Duration(1+g.rng.IntN(30*24)) * time.Hour))
	}
	return letter
}

// Populate inserts count generated letters. Serial collisions with existing rows are skipped.
func Populate(ctx context.Context, letters repository.LetterRepository, gen *Generator, count int, logger *zap.Logger) (int, error) {
	created := 0
	for created < count {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		letter := gen.Next()
		if err := letters.Create(ctx, letter); err != nil {
			if errors.Is(err, repository.ErrDuplicateSerial) {
				logger.Debug("serial already present, retrying", zap.String("serial", letter.SerialNumber))
				continue
			}
			return created, fmt.Errorf("insert %s: %w", letter.SerialNumber, err)
		}
		created++
	}
	return created, nil
}
