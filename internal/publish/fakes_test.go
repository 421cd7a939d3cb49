package publish

import (
	"context"
	"io"
	"sync"

	"github.com/jonathan/cv-publisher/internal/artifacts"
	"github.com/jonathan/cv-publisher/internal/provider"
	"github.com/jonathan/cv-publisher/internal/types"
)

const testToken = "tok-123"

func testDocument() *types.Document {
	return &types.Document{
		GeneralInfo: types.GeneralInfo{
			FullName:          "Jane Doe",
			ProfessionalTitle: "Software Engineer",
		},
		Experience: types.ExperienceData{Experiences: []types.ExperienceItem{{
			Company:  "Acme",
			Position: "Engineer",
			Location: "Berlin",
			Dates:    types.DateRange{StartDate: "2020-01", EndDate: "2022-06"},
		}}},
		Education: types.EducationData{Education: []types.EducationItem{}},
		Socials:   types.SocialsData{Socials: []types.SocialItem{}},
		Analytics: types.Analytics{Type: types.AnalyticsGoogle, GoogleTrackingID: "G-TEST123"},
		Template:  "minimal",
	}
}

// fakeStream replays events, then blocks until closed or returns end.
type fakeStream struct {
	events []provider.Event
	// end is returned after the events; nil blocks until Close.
	end error

	mu     sync.Mutex
	pos    int
	closed chan struct{}
	once   sync.Once
}

func newFakeStream(end error, events ...provider.Event) *fakeStream {
	return &fakeStream{events: events, end: end, closed: make(chan struct{})}
}

func (s *fakeStream) Next() (provider.Event, error) {
	s.mu.Lock()
	if s.pos < len(s.events) {
		ev := s.events[s.pos]
		s.pos++
		s.mu.Unlock()
		return ev, nil
	}
	s.mu.Unlock()
	if s.end != nil {
		return provider.Event{}, s.end
	}
	<-s.closed
	return provider.Event{}, io.ErrClosedPipe
}

func (s *fakeStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeStream) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// fakeAdapter is a scriptable provider.
type fakeAdapter struct {
	validation provider.Validation
	createErr  error
	// uploadGate blocks CreateDeployment until closed when set.
	uploadGate chan struct{}
	uploading  chan struct{}
	state      provider.ReadyState
	stateErr   error
	// streamedState is reported once a build log has been opened.
	streamedState provider.ReadyState
	stream     *fakeStream
	streamErr  error
	liveURL    string

	mu       sync.Mutex
	requests []provider.Request
	streams  int
}

func newFakeAdapter(stream *fakeStream) *fakeAdapter {
	return &fakeAdapter{
		validation: provider.Validation{Valid: true, Account: &provider.AccountInfo{Username: "jane"}},
		state:      provider.StateBuilding,
		stream:     stream,
		liveURL:    "https://jane-doe.example.app",
	}
}

func (f *fakeAdapter) Name() string { return "fake" }

func (f *fakeAdapter) ValidateCredentials(_ context.Context, token string) provider.Validation {
	if token != testToken {
		return provider.Validation{Valid: false, Reason: "invalid token"}
	}
	return f.validation
}

func (f *fakeAdapter) CreateDeployment(ctx context.Context, _ string, req provider.Request) (*provider.Deployment, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.uploading != nil {
		close(f.uploading)
	}
	if f.uploadGate != nil {
		select {
		case <-f.uploadGate:
		case <-ctx.Done():
			return nil, &provider.Error{Kind: types.ErrorNetwork, Op: "create deployment", Cause: ctx.Err()}
		}
	}
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &provider.Deployment{
		ID:          "dpl_1",
		Project:     "svp-jane-doe",
		ReadyState:  provider.StateQueued,
		SettingsURL: "https://vercel.com/jane/svp-jane-doe/settings",
	}, nil
}

func (f *fakeAdapter) ResolveLiveDomain(context.Context, string, string) string {
	return f.liveURL
}

func (f *fakeAdapter) StreamBuildEvents(context.Context, string, string) (provider.EventStream, error) {
	f.mu.Lock()
	f.streams++
	f.mu.Unlock()
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	return f.stream, nil
}

func (f *fakeAdapter) DeploymentState(context.Context, string, string) (provider.ReadyState, error) {
	if f.streamedState != "" && f.streamsOpened() > 0 {
		return f.streamedState, nil
	}
	return f.state, f.stateErr
}

func (f *fakeAdapter) uploads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeAdapter) streamsOpened() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streams
}

// fakeBuilder returns a two-file bundle.
type fakeBuilder struct {
	err       error
	recovered []*artifacts.Recoverable
	calls     int
}

func (b *fakeBuilder) Build(_ context.Context, doc *types.Document, _ artifacts.Options) (*artifacts.Build, error) {
	b.calls++
	if b.err != nil {
		return nil, b.err
	}
	bundle := types.NewBundle()
	_ = bundle.Add(types.IndexFile, types.TextFile("<!DOCTYPE html><html></html>"))
	_ = bundle.Add(types.CVDataFile, types.TextFile("{}"))
	return &artifacts.Build{
		Bundle:    bundle,
		EnvVars:   map[string]string{"CV_NAME": doc.GeneralInfo.FullName},
		Document:  doc,
		Recovered: b.recovered,
	}, nil
}

// transitions collects transitions from any goroutine.
type transitions struct {
	mu   sync.Mutex
	list []Transition
}

func (t *transitions) add(tr Transition) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.list = append(t.list, tr)
}

func (t *transitions) statuses() []types.JobStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []types.JobStatus
	for _, tr := range t.list {
		if tr.From != tr.To {
			out = append(out, tr.To)
		}
	}
	return out
}

func (t *transitions) messages(status types.JobStatus) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for _, tr := range t.list {
		if tr.From == status && tr.To == status {
			out = append(out, tr.Message)
		}
	}
	return out
}
