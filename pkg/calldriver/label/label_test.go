package label

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/calldriver/pkg/calldriver/metrics"
)

type fakeProvider struct {
	src   Source
	reply string
	err   error
	delay time.Duration
	calls atomic.Int32
	user  atomic.Value
}

func (f *fakeProvider) Source() Source { return f.src }

func (f *fakeProvider) Complete(ctx context.Context, system, user string) (string, error) {
	f.calls.Add(1)
	f.user.Store(user)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply, f.err
}

var passwordTickets = []string{
	"Password reset needed, account locked",
	"Forgot password, locked out",
	"Unlock my account please",
}

func TestResolveFirstProviderWins(t *testing.T) {
	first := &fakeProvider{src: SourceGemini, reply: `{"title":"Account Lockouts","rationale":"users locked out"}`}
	second := &fakeProvider{src: SourceOpenAI, reply: `{"title":"Never Used"}`}
	r := NewResolver(DefaultConfig(), []Provider{first, second}, nil, zerolog.Nop(), nil)

	got := r.Resolve(context.Background(), passwordTickets)
	assert.Equal(t, ClusterLabel{Title: "Account Lockouts", Rationale: "users locked out", Source: SourceGemini}, got)
	assert.EqualValues(t, 0, second.calls.Load())

	user, _ := first.user.Load().(string)
	assert.Contains(t, user, "Unlock my account please")
	assert.Contains(t, user, "Return ONLY JSON")
}

func TestResolveFallsThroughOnErrorAndBadJSON(t *testing.T) {
	failing := &fakeProvider{src: SourceGemini, err: errors.New("boom")}
	prose := &fakeProvider{src: SourceOpenAI, reply: "It is about passwords."}
	good := &fakeProvider{src: SourceAnthropic, reply: "```json\n{\"title\":\"The Password Resets\",\"rationale\":\"r\"}\n```"}
	m := metrics.New(nil)
	r := NewResolver(DefaultConfig(), []Provider{failing, prose, good}, nil, zerolog.Nop(), m)

	got := r.Resolve(context.Background(), passwordTickets)
	assert.Equal(t, "Password Resets", got.Title)
	assert.Equal(t, SourceAnthropic, got.Source)
	assert.EqualValues(t, 1, failing.calls.Load())
	assert.EqualValues(t, 1, prose.calls.Load())
}

func TestResolveAllProvidersFailUsesLocal(t *testing.T) {
	providers := []Provider{
		&fakeProvider{src: SourceGemini, err: errors.New("quota")},
		&fakeProvider{src: SourceOpenAI, reply: `{"title":"","rationale":"r"}`},
	}
	r := NewResolver(DefaultConfig(), providers, nil, zerolog.Nop(), nil)

	got := r.Resolve(context.Background(), passwordTickets)
	assert.Equal(t, "Password Reset / Unlock", got.Title)
	assert.Equal(t, SourceLocal, got.Source)
	assert.Equal(t, lexiconRationale, got.Rationale)
}

func TestResolveNoProviders(t *testing.T) {
	r := NewResolver(Config{}, nil, nil, zerolog.Nop(), nil)
	got := r.Resolve(context.Background(), nil)
	assert.Equal(t, SourceLocal, got.Source)
	assert.NotEmpty(t, got.Title)
}

func TestResolveAttemptTimeout(t *testing.T) {
	slow := &fakeProvider{src: SourceGemini, reply: `{"title":"Too Late"}`, delay: 5 * time.Second}
	cfg := DefaultConfig()
	cfg.Timeout = 20 * time.Millisecond
	r := NewResolver(cfg, []Provider{slow}, nil, zerolog.Nop(), nil)

	start := time.Now()
	got := r.Resolve(context.Background(), passwordTickets)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, SourceLocal, got.Source)
}

func TestResolveCancelledContextSkipsProviders(t *testing.T) {
	p := &fakeProvider{src: SourceGemini, reply: `{"title":"Unused"}`}
	r := NewResolver(DefaultConfig(), []Provider{p}, nil, zerolog.Nop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got := r.Resolve(ctx, passwordTickets)
	assert.Equal(t, SourceLocal, got.Source)
	assert.EqualValues(t, 0, p.calls.Load())
}

func TestResolveAll(t *testing.T) {
	p := &fakeProvider{src: SourceOpenAI, reply: `{"title":"Shared Title","rationale":"x"}`}
	r := NewResolver(DefaultConfig(), []Provider{p}, nil, zerolog.Nop(), nil)

	clusters := map[string][]string{
		"cluster_0": passwordTickets,
		"cluster_1": {"vpn drops at home", "vpn tunnel fails"},
		"cluster_2": {"printer jam", "printer offline"},
	}
	got := r.ResolveAll(context.Background(), clusters)
	require.Len(t, got, 3)
	for k := range clusters {
		assert.Equal(t, "Shared Title", got[k].Title, k)
	}
	assert.EqualValues(t, 3, p.calls.Load())
}

func TestSample(t *testing.T) {
	var texts []string
	for i := 0; i < 40; i++ {
		texts = append(texts, fmt.Sprintf("ticket %02d %s", i, strings.Repeat("x", 400)))
	}
	texts = append(texts, "", "   ")

	a := Sample(texts, 12, 280, 42)
	b := Sample(texts, 12, 280, 42)
	require.Len(t, a, 12)
	assert.Equal(t, a, b)
	for _, s := range a {
		assert.Equal(t, 280, len([]rune(s)))
		assert.NotEmpty(t, strings.TrimSpace(s))
	}

	c := Sample(texts, 12, 280, 7)
	assert.NotEqual(t, a, c)

	// Input is left untouched.
	assert.Equal(t, "ticket 00 ", texts[0][:10])
	assert.Len(t, texts[0], 410)
}

func TestSampleSmallInput(t *testing.T) {
	got := Sample([]string{"héllo wörld", "short"}, 12, 5, 1)
	assert.ElementsMatch(t, []string{"héllo", "short"}, got)
	assert.Empty(t, Sample(nil, 12, 280, 1))
}
