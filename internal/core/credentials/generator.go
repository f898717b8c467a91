// Package credentials derives control-panel account identifiers and
// passwords from order data.
package credentials

import (
	crand "crypto/rand"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/artpar/hostprov/internal/core/dns"
	"github.com/artpar/hostprov/internal/core/domain"
)

// =============================================================================
// Policy
// =============================================================================

const (
	// MaxUsernameLength is the control panel's account name limit.
	MaxUsernameLength = 8
	MinUsernameLength = 6

	MinPasswordLength = 12

	passwordPrefix = "Hp"
	suffixLength   = 8
)

const (
	lowerChars  = "abcdefghijkmnopqrstuvwxyz"
	upperChars  = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	digitChars  = "23456789"
	symbolChars = "!@#$%*-_+="
)

var (
	ErrPasswordTooShort         = errors.New("password is too short")
	ErrPasswordMissingClass     = errors.New("password must mix lowercase, uppercase, digits and symbols")
	ErrPasswordContainsUsername = errors.New("password must not contain the username")
)

// CheckPasswordPolicy reports whether password is acceptable for username.
func CheckPasswordPolicy(password, username string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}
	if !lower || !upper || !digit || !symbol {
		return ErrPasswordMissingClass
	}
	if username != "" && strings.Contains(strings.ToLower(password), strings.ToLower(username)) {
		return ErrPasswordContainsUsername
	}
	return nil
}

// =============================================================================
// Generator
// =============================================================================

// Generator produces AccountCredentials. It is safe for concurrent use.
type Generator struct {
	now func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator creates a generator seeded from crypto/rand.
func NewGenerator() *Generator {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		panic(fmt.Sprintf("credentials: read random seed: %v", err))
	}
	return NewGeneratorWith(time.Now, seed)
}

// NewGeneratorWith creates a generator with a fixed clock and seed.
func NewGeneratorWith(now func() time.Time, seed [32]byte) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{
		now: now,
		rng: rand.New(rand.NewChaCha8(seed)),
	}
}

// Generate derives the credentials for an order whose domain is already resolved.
// It never fails.
func (g *Generator) Generate(order domain.OrderRequest, resolvedDomain string) domain.AccountCredentials {
	now := g.now()
	username := Username(order, resolvedDomain, now)
	return domain.AccountCredentials{
		Username: username,
		Password: g.password(username, now),
		Domain:   resolvedDomain,
	}
}

// Username derives the account identifier.
//
// For a managed subdomain the sanitized label is used, so the account name
// matches the site. Otherwise three characters of the client name, three of
// the domain's first label and two time digits are combined; the time digits
// lower collision odds without a remote availability check.
func Username(order domain.OrderRequest, resolvedDomain string, now time.Time) string {
	var base string
	if order.Strategy == domain.StrategyManagedSubdomain {
		base = dns.SanitizeLabel(order.Subdomain)
	} else {
		firstLabel, _, _ := strings.Cut(resolvedDomain, ".")
		base = head(dns.SanitizeLabel(order.Client.Name), 3) +
			head(dns.SanitizeLabel(firstLabel), 3) +
			fmt.Sprintf("%02d", now.Unix()%100)
	}

	if base == "" || base[0] < 'a' || base[0] > 'z' {
		base = "u" + base
	}
	base = head(base, MaxUsernameLength)

	if len(base) < MinUsernameLength {
		pad := fmt.Sprintf("%06d", now.Unix()%1_000_000)
		base += pad[:MinUsernameLength-len(base)]
	}
	return base
}

func (g *Generator) password(username string, now time.Time) string {
	suffix := g.randomSuffix()
	pw := fmt.Sprintf("%s%04d%s", passwordPrefix, now.UnixMilli()%10_000, suffix)
	return breakUsername(pw, username)
}

// randomSuffix returns suffixLength characters with at least one of each class.
func (g *Generator) randomSuffix() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	all := lowerChars + upperChars + digitChars + symbolChars
	buf := []byte{
		lowerChars[g.rng.IntN(len(lowerChars))],
		upperChars[g.rng.IntN(len(upperChars))],
		digitChars[g.rng.IntN(len(digitChars))],
		symbolChars[g.rng.IntN(len(symbolChars))],
	}
	for len(buf) < suffixLength {
		buf = append(buf, all[g.rng.IntN(len(all))])
	}
	g.rng.Shuffle(len(buf), func(i, j int) { buf[i], buf[j] = buf[j], buf[i] })
	return string(buf)
}

// breakUsername inserts a symbol into every case-insensitive occurrence of
// username. Insertion keeps every character class already present.
func breakUsername(pw, username string) string {
	if username == "" {
		return pw
	}
	needle := strings.ToLower(username)
	for {
		idx := strings.Index(strings.ToLower(pw), needle)
		if idx < 0 {
			return pw
		}
		pw = pw[:idx+1] + "#" + pw[idx+1:]
	}
}

func head(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
