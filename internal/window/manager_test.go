package window

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/promptline/internal/directory"
	"github.com/ternarybob/promptline/internal/filecache"
	"github.com/ternarybob/promptline/internal/history"
	"github.com/ternarybob/promptline/internal/ipc"
	"github.com/ternarybob/promptline/internal/model"
	"github.com/ternarybob/promptline/internal/native"
	"github.com/ternarybob/promptline/internal/settings"
	"github.com/ternarybob/promptline/internal/space"
)

// callLog records calls across fakes in order.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(c string) {
	l.mu.Lock()
	l.calls = append(l.calls, c)
	l.mu.Unlock()
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *callLog) index(c string) int {
	for i, v := range l.all() {
		if v == c {
			return i
		}
	}
	return -1
}

func (l *callLog) count(c string) int {
	n := 0
	for _, v := range l.all() {
		if v == c {
			n++
		}
	}
	return n
}

type fakeHost struct {
	log     *callLog
	loading bool
	pending []func()
	bounds  []model.Rect
	sent    []string
	payload map[string]any
	mu      sync.Mutex
}

func (h *fakeHost) Create(_ context.Context, b model.Rect) error {
	h.log.add("create")
	h.mu.Lock()
	h.bounds = append(h.bounds, b)
	h.mu.Unlock()
	return nil
}
func (h *fakeHost) Destroy() error { h.log.add("destroy"); return nil }
func (h *fakeHost) SetBounds(b model.Rect) error {
	h.log.add("set-bounds")
	h.mu.Lock()
	h.bounds = append(h.bounds, b)
	h.mu.Unlock()
	return nil
}
func (h *fakeHost) Show() error                 { h.log.add("show"); return nil }
func (h *fakeHost) Hide() error                 { h.log.add("hide"); return nil }
func (h *fakeHost) Focus() error                { h.log.add("focus"); return nil }
func (h *fakeHost) WriteClipboard(string) error { h.log.add("clipboard"); return nil }
func (h *fakeHost) IsLoading() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loading
}
func (h *fakeHost) OnFinishLoad(fn func()) {
	h.mu.Lock()
	h.pending = append(h.pending, fn)
	h.mu.Unlock()
}
func (h *fakeHost) finishLoad() {
	h.mu.Lock()
	h.loading = false
	pending := h.pending
	h.pending = nil
	h.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}
func (h *fakeHost) Send(channel string, payload any) error {
	if err := ipc.Validate(channel); err != nil {
		return err
	}
	h.log.add("send:" + channel)
	h.mu.Lock()
	h.sent = append(h.sent, channel)
	if h.payload == nil {
		h.payload = map[string]any{}
	}
	h.payload[channel] = payload
	h.mu.Unlock()
	return nil
}
func (h *fakeHost) lastPayload(channel string) any {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.payload[channel]
}

type fakeNative struct {
	log       *callLog
	app       native.Result[model.AppInfo]
	window    native.Result[model.Rect]
	textField native.Result[model.Rect]
	pasteErr  string
}

func (f *fakeNative) CurrentApp(context.Context) native.Result[model.AppInfo] {
	f.log.add("current-app")
	return f.app
}
func (f *fakeNative) ActiveWindowBounds(context.Context) native.Result[model.Rect] { return f.window }
func (f *fakeNative) TextFieldBounds(context.Context) native.Result[model.Rect]    { return f.textField }
func (f *fakeNative) Paste(context.Context) native.Result[native.Ack] {
	f.log.add("paste")
	return native.Ok(native.Ack{Success: true})
}
func (f *fakeNative) ActivateAndPaste(_ context.Context, bundleID string) native.Result[native.Ack] {
	f.log.add("activate-and-paste:" + bundleID)
	if f.pasteErr != "" {
		return native.Err[native.Ack](f.pasteErr)
	}
	return native.Ok(native.Ack{Success: true})
}

type fakeSpace struct {
	mu        sync.Mutex
	ready     bool
	signature string
	err       error
	panics    bool
	apps      []*model.AppInfo
}

func (f *fakeSpace) Initialize(context.Context) error { return nil }
func (f *fakeSpace) IsReady() bool                    { return f.ready }
func (f *fakeSpace) CurrentSpaceInfo(_ context.Context, app *model.AppInfo) (*space.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apps = append(f.apps, app)
	if f.panics {
		panic("space probe")
	}
	if f.err != nil {
		return nil, f.err
	}
	return &space.Info{Method: space.MethodHeuristic, Signature: f.signature}, nil
}
func (f *fakeSpace) HasSpaceChanged(context.Context, *model.AppInfo) (bool, error) { return false, nil }
func (f *fakeSpace) setSignature(s string) {
	f.mu.Lock()
	f.signature = s
	f.mu.Unlock()
}

type fakeDetector struct {
	log     *callLog
	cached  *model.DirectoryInfo
	saved   string
	release chan struct{}
	started chan directory.Notifier
}

func (f *fakeDetector) LoadCachedFilesForWindow(context.Context, *settings.FileSearch) *model.DirectoryInfo {
	return f.cached
}
func (f *fakeDetector) SavedDirectory(context.Context) string { return f.saved }
func (f *fakeDetector) ExecuteBackgroundDirectoryDetection(_ context.Context, n directory.Notifier, _ *settings.FileSearch) {
	f.log.add("detect")
	if f.started != nil {
		f.started <- n
	}
	if f.release != nil {
		<-f.release
	}
}

type fakeHistory struct {
	draft history.Draft
	added []string
}

func (f *fakeHistory) Add(_ context.Context, text, appName, dir string) (*history.Item, error) {
	f.added = append(f.added, text)
	return &history.Item{ID: "01TEST", Text: text, AppName: appName, Directory: dir}, nil
}
func (f *fakeHistory) Draft(context.Context) (history.Draft, error) { return f.draft, nil }
func (f *fakeHistory) SaveDraftText(_ context.Context, text string) error {
	f.draft.Text = text
	return nil
}
func (f *fakeHistory) ClearDraftText(context.Context) error {
	f.draft.Text = ""
	return nil
}

type staticSettings struct{ s *settings.Settings }

func (s staticSettings) Get() *settings.Settings { return s.s.Clone() }

type fixture struct {
	log      *callLog
	host     *fakeHost
	native   *fakeNative
	space    *fakeSpace
	detector *fakeDetector
	history  *fakeHistory
	settings *settings.Settings
	mgr      *Manager
}

func newFixture(t *testing.T, inline bool) *fixture {
	t.Helper()
	log := &callLog{}
	s := settings.Defaults()
	s.FileSearch = settings.DefaultFileSearch()
	s.Window.Position = settings.PositionCenter

	f := &fixture{
		log:      log,
		host:     &fakeHost{log: log},
		native:   &fakeNative{log: log, app: native.Ok(model.AppInfo{Name: "TextEdit", BundleID: "com.apple.TextEdit"})},
		space:    &fakeSpace{ready: true, signature: "TextEdit:1|TimeBucket-1000:1"},
		detector: &fakeDetector{log: log},
		history:  &fakeHistory{},
		settings: s,
	}
	f.native.window = native.Err[model.Rect]("no window")
	f.native.textField = native.Err[model.Rect]("no text field")

	deps := Deps{
		Host:     f.host,
		Native:   f.native,
		Space:    f.space,
		Detector: f.detector,
		History:  f.history,
		Settings: staticSettings{s},
		Logger:   arbor.NewLogger(),
	}
	if inline {
		deps.Schedule = func(fn func()) { fn() }
	}
	f.mgr = NewManager(deps)
	return f
}

func TestShow_DetectionRunsAfterWindowShown(t *testing.T) {
	f := newFixture(t, false)
	f.detector.release = make(chan struct{})
	f.detector.started = make(chan directory.Notifier, 1)
	defer close(f.detector.release)

	start := time.Now()
	require.NoError(t, f.mgr.ShowInputWindow(context.Background(), ShowRequest{}))
	assert.Less(t, time.Since(start), time.Second, "show does not wait for detection")
	assert.Equal(t, Shown, f.mgr.State())

	select {
	case <-f.detector.started:
	case <-time.After(time.Second):
		t.Fatal("background detection was not scheduled")
	}

	shown := f.log.index("show")
	sent := f.log.index("send:" + ipc.ChannelWindowShown)
	detect := f.log.index("detect")
	require.NotEqual(t, -1, detect)
	assert.Less(t, sent, detect)
	assert.Less(t, shown, detect)
}

func TestShow_DeferredUntilFinishLoad(t *testing.T) {
	f := newFixture(t, true)
	f.host.loading = true

	require.NoError(t, f.mgr.ShowInputWindow(context.Background(), ShowRequest{}))
	assert.Equal(t, 0, f.log.count("send:"+ipc.ChannelWindowShown))
	assert.Equal(t, 0, f.log.count("detect"))
	assert.Equal(t, Created, f.mgr.State())

	f.host.finishLoad()
	assert.Equal(t, 1, f.log.count("send:"+ipc.ChannelWindowShown))
	assert.Equal(t, 1, f.log.count("detect"))
	assert.Equal(t, Shown, f.mgr.State())
}

func TestShow_ReuseWhenSpaceUnchanged(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	require.NoError(t, f.mgr.ShowInputWindow(ctx, ShowRequest{}))
	require.NoError(t, f.mgr.HideInputWindow(ctx))
	require.NoError(t, f.mgr.ShowInputWindow(ctx, ShowRequest{}))

	assert.Equal(t, 1, f.log.count("create"))
	assert.Equal(t, 0, f.log.count("destroy"))
	assert.Equal(t, 0, f.log.count("set-bounds"), "center mode keeps its position")
	assert.Equal(t, Shown, f.mgr.State())
}

func TestShow_RecreateWhenSpaceChanges(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	require.NoError(t, f.mgr.ShowInputWindow(ctx, ShowRequest{}))
	f.space.setSignature("Terminal:1|TimeBucket-1005:1")
	require.NoError(t, f.mgr.ShowInputWindow(ctx, ShowRequest{}))

	assert.Equal(t, 2, f.log.count("create"))
	assert.Equal(t, 1, f.log.count("destroy"))
}

func TestShow_NoSpaceInfoRecreatesOnlyWithoutWindow(t *testing.T) {
	f := newFixture(t, true)
	f.space.ready = false
	ctx := context.Background()

	require.NoError(t, f.mgr.ShowInputWindow(ctx, ShowRequest{}))
	require.NoError(t, f.mgr.ShowInputWindow(ctx, ShowRequest{}))
	assert.Equal(t, 1, f.log.count("create"))

	require.NoError(t, f.mgr.Destroy())
	require.NoError(t, f.mgr.ShowInputWindow(ctx, ShowRequest{}))
	assert.Equal(t, 2, f.log.count("create"))
}

func TestShow_RepositionOnReuseForCursorMode(t *testing.T) {
	f := newFixture(t, true)
	f.settings.Window.Position = settings.PositionCursor
	ctx := context.Background()
	display := Display{Cursor: model.Point{X: 500, Y: 400}, WorkArea: model.Rect{Width: 1440, Height: 900}}

	require.NoError(t, f.mgr.ShowInputWindow(ctx, ShowRequest{Display: display}))
	require.NoError(t, f.mgr.ShowInputWindow(ctx, ShowRequest{Display: display}))

	assert.Equal(t, 1, f.log.count("set-bounds"))
	assert.Equal(t, model.Rect{X: 200, Y: 250, Width: 600, Height: 300}, f.host.bounds[1])
}

func TestShow_ProbeFailuresAreIsolated(t *testing.T) {
	f := newFixture(t, true)
	f.native.app = native.Err[model.AppInfo]("timeout after 1.5s")
	f.space.err = errors.New("space unavailable")

	require.NoError(t, f.mgr.ShowInputWindow(context.Background(), ShowRequest{}))

	data := f.host.lastPayload(ipc.ChannelWindowShown).(WindowData)
	assert.Nil(t, data.SourceApp)
	assert.Nil(t, data.SpaceInfo)
	assert.Equal(t, Shown, f.mgr.State())
}

func TestShow_SpacePanicDoesNotAbortAppProbe(t *testing.T) {
	f := newFixture(t, true)
	f.space.panics = true

	require.NoError(t, f.mgr.ShowInputWindow(context.Background(), ShowRequest{}))
	data := f.host.lastPayload(ipc.ChannelWindowShown).(WindowData)
	require.NotNil(t, data.SourceApp)
	assert.Equal(t, "TextEdit", data.SourceApp.Name)
}

func TestShow_PayloadUsesCacheThenDraft(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.history.draft = history.Draft{Text: "half written", Directory: "/Users/me/a"}

	require.NoError(t, f.mgr.ShowInputWindow(ctx, ShowRequest{}))
	data := f.host.lastPayload(ipc.ChannelWindowShown).(WindowData)
	assert.True(t, data.FileSearchEnabled)
	assert.Equal(t, "half written", data.Draft)
	require.NotNil(t, data.DirectoryData)
	assert.True(t, data.DirectoryData.FromDraft)
	assert.Equal(t, "/Users/me/a", data.DirectoryData.Directory)

	f.detector.cached = &model.DirectoryInfo{Directory: "/Users/me/a", Files: []string{"x"}, FromCache: true}
	require.NoError(t, f.mgr.ShowInputWindow(ctx, ShowRequest{}))
	data = f.host.lastPayload(ipc.ChannelWindowShown).(WindowData)
	assert.True(t, data.DirectoryData.FromCache)
	assert.Equal(t, "TextEdit", data.DirectoryData.AppName)
}

func TestShow_FileSearchOverride(t *testing.T) {
	f := newFixture(t, true)
	off := false
	f.detector.cached = &model.DirectoryInfo{Directory: "/a"}

	require.NoError(t, f.mgr.ShowInputWindow(context.Background(), ShowRequest{FileSearch: &off}))
	data := f.host.lastPayload(ipc.ChannelWindowShown).(WindowData)
	assert.False(t, data.FileSearchEnabled)
	assert.Nil(t, data.DirectoryData)
	assert.True(t, f.settings.FileSearchEnabled(), "overrides are not persisted")
}

func TestStaleNotifierDropsEvents(t *testing.T) {
	f := newFixture(t, false)
	f.detector.started = make(chan directory.Notifier, 2)
	ctx := context.Background()

	require.NoError(t, f.mgr.ShowInputWindow(ctx, ShowRequest{}))
	first := <-f.detector.started

	f.space.setSignature("Other:1")
	require.NoError(t, f.mgr.ShowInputWindow(ctx, ShowRequest{}))
	second := <-f.detector.started

	require.NoError(t, first.Send(ipc.ChannelDirectoryDataUpdated, model.DirectoryInfo{Directory: "/old"}))
	assert.Equal(t, 0, f.log.count("send:"+ipc.ChannelDirectoryDataUpdated))

	require.NoError(t, second.Send(ipc.ChannelDirectoryDataUpdated, model.DirectoryInfo{Directory: "/new"}))
	assert.Equal(t, 1, f.log.count("send:"+ipc.ChannelDirectoryDataUpdated))
}

func TestPaste(t *testing.T) {
	f := newFixture(t, true)
	f.detector.saved = "/Users/me/a"
	ctx := context.Background()

	require.NoError(t, f.mgr.ShowInputWindow(ctx, ShowRequest{}))
	item, err := f.mgr.Paste(ctx, "hello")
	require.NoError(t, err)

	assert.Equal(t, "TextEdit", item.AppName)
	assert.Equal(t, "/Users/me/a", item.Directory)
	assert.Equal(t, []string{"hello"}, f.history.added)
	assert.Equal(t, Hidden, f.mgr.State())

	hide := f.log.index("hide")
	paste := f.log.index("activate-and-paste:com.apple.TextEdit")
	require.NotEqual(t, -1, paste)
	assert.Less(t, f.log.index("clipboard"), hide)
	assert.Less(t, hide, paste)
	assert.Equal(t, 1, f.log.count("send:"+ipc.ChannelHistoryUpdated))

	_, err = f.mgr.Paste(ctx, "  ")
	assert.Error(t, err)
}

func TestHide_NoopWhenNotShown(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.mgr.HideInputWindow(context.Background()))
	assert.Equal(t, 0, f.log.count("hide"))
	assert.Equal(t, Uninitialized, f.mgr.State())
}

func TestPaste_FailureKeepsDraftAndHistory(t *testing.T) {
	f := newFixture(t, true)
	f.native.pasteErr = "accessibility permission denied"
	f.history.draft = history.Draft{Text: "keep me"}
	ctx := context.Background()

	require.NoError(t, f.mgr.ShowInputWindow(ctx, ShowRequest{}))
	_, err := f.mgr.Paste(ctx, "keep me")
	require.Error(t, err)

	assert.Empty(t, f.history.added)
	assert.Equal(t, "keep me", f.history.draft.Text)
	assert.Equal(t, 0, f.log.count("send:"+ipc.ChannelHistoryUpdated))
}

func TestShow_SpaceProbeReceivesFrontmostApp(t *testing.T) {
	f := newFixture(t, true)

	require.NoError(t, f.mgr.ShowInputWindow(context.Background(), ShowRequest{}))

	assert.Equal(t, 1, f.log.count("current-app"))
	f.space.mu.Lock()
	defer f.space.mu.Unlock()
	require.Len(t, f.space.apps, 1)
	require.NotNil(t, f.space.apps[0])
	assert.Equal(t, "TextEdit", f.space.apps[0].Name)
}

// detectorFixture wires a real directory.Detector so file search overrides
// can be checked end to end.
type detectorFixture struct {
	*fixture
	tool *recordingTool
}

type recordingTool struct {
	mu    sync.Mutex
	calls []native.DetectOptions
}

func (r *recordingTool) DetectDirectory(_ context.Context, opts native.DetectOptions, _ time.Duration) native.Result[model.DirectoryInfo] {
	r.mu.Lock()
	r.calls = append(r.calls, opts)
	r.mu.Unlock()
	info := model.DirectoryInfo{Directory: "/Users/me/p", Success: true}
	if opts.FileSearch {
		info.Files = []string{"/Users/me/p/a.go"}
	}
	return native.Ok(info)
}

func (r *recordingTool) options() []native.DetectOptions {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]native.DetectOptions(nil), r.calls...)
}

type memDrafts struct {
	mu  sync.Mutex
	dir string
}

func (m *memDrafts) SavedDirectory(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dir, nil
}

func (m *memDrafts) SetSavedDirectory(_ context.Context, dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dir = dir
	return nil
}

func newDetectorFixture(t *testing.T, persisted *settings.FileSearch) *detectorFixture {
	t.Helper()
	f := newFixture(t, true)
	f.settings.FileSearch = persisted

	tool := &recordingTool{}
	det := directory.NewDetector(tool, filecache.NewManager(t.TempDir(), time.Hour, arbor.NewLogger()),
		&memDrafts{dir: "/Users/me/old"}, staticSettings{f.settings}, arbor.NewLogger(), directory.Options{
			Timeout:  time.Second,
			LookPath: func(name, _ string) (string, bool) { return "/opt/homebrew/bin/" + name, true },
		})

	f.mgr = NewManager(Deps{
		Host:     f.host,
		Native:   f.native,
		Space:    f.space,
		Detector: det,
		History:  f.history,
		Settings: staticSettings{f.settings},
		Logger:   arbor.NewLogger(),
		Schedule: func(fn func()) { fn() },
	})
	return &detectorFixture{fixture: f, tool: tool}
}

func TestShow_FileSearchOffReachesDetection(t *testing.T) {
	f := newDetectorFixture(t, settings.DefaultFileSearch())
	off := false

	require.NoError(t, f.mgr.ShowInputWindow(context.Background(), ShowRequest{FileSearch: &off}))

	data := f.host.lastPayload(ipc.ChannelWindowShown).(WindowData)
	assert.False(t, data.FileSearchEnabled)

	calls := f.tool.options()
	require.Len(t, calls, 1)
	assert.False(t, calls[0].FileSearch)

	update, ok := f.host.lastPayload(ipc.ChannelDirectoryDataUpdated).(model.DirectoryInfo)
	require.True(t, ok, "directory change is reported")
	assert.Equal(t, "/Users/me/p", update.Directory)
	assert.Empty(t, update.Files)
}

func TestShow_FileSearchOnReachesDetection(t *testing.T) {
	f := newDetectorFixture(t, nil)
	on := true

	require.NoError(t, f.mgr.ShowInputWindow(context.Background(), ShowRequest{FileSearch: &on}))

	data := f.host.lastPayload(ipc.ChannelWindowShown).(WindowData)
	assert.True(t, data.FileSearchEnabled)

	calls := f.tool.options()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].FileSearch)

	update, ok := f.host.lastPayload(ipc.ChannelDirectoryDataUpdated).(model.DirectoryInfo)
	require.True(t, ok)
	assert.Equal(t, []string{"/Users/me/p/a.go"}, update.Files)
}
