package apps

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanlaunch/internal/source"
)

func testCatalog() []App {
	return []App{
		{ID: "firefox", Name: "Firefox", Exec: "firefox", Keywords: []string{"browser", "web"}},
		{ID: "files", Name: "Files", Exec: "nautilus --new-window"},
		{ID: "term", Name: "Terminal", Exec: "gnome-terminal"},
		{ID: "calc", Name: "Calculator", Exec: "gnome-calculator", Comment: "Perform calculations"},
	}
}

func newTestSource(t *testing.T, entries []App) *Source {
	t.Helper()
	return New(Config{Entries: entries})
}

func candidateTitles(cands []source.Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Title
	}
	return out
}

func TestParseDesktopEntry(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		wantOK bool
		want   App
	}{
		{
			name: "application",
			input: `[Desktop Entry]
Type=Application
Name=Text Editor
Name[de]=Texteditor
Comment=Edit text files
Exec=gedit %U
Keywords=text;editor;
`,
			wantOK: true,
			want: App{ID: "gedit", Name: "Text Editor", Exec: "gedit", Comment: "Edit text files",
				Keywords: []string{"text", "editor"}},
		},
		{
			name:   "no display",
			input:  "[Desktop Entry]\nType=Application\nName=Hidden\nExec=x\nNoDisplay=true\n",
			wantOK: false,
		},
		{
			name:   "link type",
			input:  "[Desktop Entry]\nType=Link\nName=Site\nURL=https://example.com\n",
			wantOK: false,
		},
		{
			name:   "missing exec",
			input:  "[Desktop Entry]\nType=Application\nName=Broken\n",
			wantOK: false,
		},
		{
			name: "action groups ignored",
			input: `[Desktop Entry]
Type=Application
Name=Browser
Exec=browser %u

[Desktop Action new-window]
Name=New Window
Exec=browser --new-window
`,
			wantOK: true,
			want:   App{ID: "gedit", Name: "Browser", Exec: "browser"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := parseDesktopEntry("gedit", strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestStripFieldCodes(t *testing.T) {
	assert.Equal(t, "app --flag", stripFieldCodes("app %F --flag %i"))
	assert.Equal(t, "printf 100%", stripFieldCodes("printf 100%%"))
	assert.Equal(t, "", stripFieldCodes(""))
}

func TestScanDesktopDirs_EarlierDirShadows(t *testing.T) {
	// Given: the same id in a user and a system directory
	user, system := t.TempDir(), t.TempDir()
	entry := func(name string) []byte {
		return []byte("[Desktop Entry]\nType=Application\nName=" + name + "\nExec=editor\n")
	}
	require.NoError(t, os.WriteFile(filepath.Join(user, "editor.desktop"), entry("User Editor"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(system, "editor.desktop"), entry("System Editor"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(system, "other.desktop"), entry("Other"), 0o644))

	// When: scanning user first
	apps := scanDesktopDirs([]string{user, system}, nil)

	// Then: the user entry wins and the other system entry is kept
	require.Len(t, apps, 2)
	byID := map[string]string{}
	for _, a := range apps {
		byID[a.ID] = a.Name
	}
	assert.Equal(t, "User Editor", byID["editor"])
	assert.Equal(t, "Other", byID["other"])
}

func TestNew_ConfiguredEntriesOverrideDesktop(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "firefox.desktop"),
		[]byte("[Desktop Entry]\nType=Application\nName=Firefox ESR\nExec=firefox-esr\n"), 0o644))

	s := New(Config{Entries: testCatalog()[:1], ScanDesktop: true, DesktopDirs: []string{dir}})

	require.Len(t, s.Apps(), 1)
	assert.Equal(t, "Firefox", s.Apps()[0].Name)
}

func TestResolve_BlankListsAlphabetically(t *testing.T) {
	s := newTestSource(t, testCatalog())

	cands, err := s.Resolve(context.Background(), source.NewQuery("  ", ""))

	require.NoError(t, err)
	assert.Equal(t, []string{"Calculator", "Files", "Firefox", "Terminal"}, candidateTitles(cands))
}

func TestResolve_NameBeforeKeywordBeforeExec(t *testing.T) {
	// Given: "web" is a Firefox keyword and also inside a command line
	entries := append(testCatalog(), App{ID: "webapp", Name: "Web Apps", Exec: "epiphany"},
		App{ID: "srv", Name: "Server", Exec: "webserver --port 80"})
	s := newTestSource(t, entries)

	// When
	cands, err := s.Resolve(context.Background(), source.NewQuery("web", ""))

	// Then: name match first, keyword next, exec last
	require.NoError(t, err)
	assert.Equal(t, []string{"Web Apps", "Firefox", "Server"}, candidateTitles(cands))
	assert.Equal(t, []int{0, 1, 2}, cands[0].TitleMatchPositions)
	assert.Empty(t, cands[1].TitleMatchPositions)
	assert.Equal(t, []int{0, 1, 2}, cands[2].SubtitleMatchPositions)
	for i := 1; i < len(cands); i++ {
		assert.Greater(t, cands[i-1].RankScore, cands[i].RankScore)
	}
}

func TestResolve_CandidateShape(t *testing.T) {
	s := newTestSource(t, testCatalog())

	cands, err := s.Resolve(context.Background(), source.NewQuery("calc", ""))

	require.NoError(t, err)
	require.Len(t, cands, 1)
	c := cands[0]
	assert.Equal(t, "apps:calc", c.ID)
	assert.Equal(t, "Perform calculations", c.Subtitle)
	assert.Equal(t, source.Action{Kind: source.ActionLaunchApp, Target: "gnome-calculator", Label: "Launch"}, c.Action)
	assert.True(t, c.Scored)
}

func TestResolve_NoMatch(t *testing.T) {
	s := newTestSource(t, testCatalog())

	cands, err := s.Resolve(context.Background(), source.NewQuery("zzz", ""))

	require.NoError(t, err)
	assert.Empty(t, cands)
}

func TestResolve_CachedResultsAreCopies(t *testing.T) {
	s := newTestSource(t, testCatalog())
	q := source.NewQuery("fi", "")

	first, err := s.Resolve(context.Background(), q)
	require.NoError(t, err)
	require.NotEmpty(t, first)
	first[0].SourceID = "mutated"
	first[0].Title = "mutated"

	second, err := s.Resolve(context.Background(), q)
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", second[0].Title)
	assert.Empty(t, second[0].SourceID)
}

func TestResolve_MaxResults(t *testing.T) {
	s := New(Config{Entries: testCatalog(), MaxResults: 2})

	cands, err := s.Resolve(context.Background(), source.NewQuery("", ""))

	require.NoError(t, err)
	assert.Len(t, cands, 2)
}

func TestResolve_CanceledContext(t *testing.T) {
	s := newTestSource(t, testCatalog())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Resolve(ctx, source.NewQuery("fi", ""))

	assert.ErrorIs(t, err, context.Canceled)
}

func TestAccepts_EmptyCatalog(t *testing.T) {
	assert.False(t, newTestSource(t, nil).Accepts(source.NewQuery("x", "")))
	assert.True(t, newTestSource(t, testCatalog()).Accepts(source.NewQuery("", "")))
}

func TestResolveTarget(t *testing.T) {
	s := newTestSource(t, testCatalog())

	title, action, ok := s.ResolveTarget("firefox", "")
	require.True(t, ok)
	assert.Equal(t, "Launch Firefox", title)
	assert.Equal(t, source.ActionLaunchApp, action.Kind)
	assert.Equal(t, "firefox", action.Target)

	title, action, ok = s.ResolveTarget("firefox", "https://go.dev")
	require.True(t, ok)
	assert.Equal(t, "Launch Firefox https://go.dev", title)
	assert.Equal(t, "firefox https://go.dev", action.Target)

	_, _, ok = s.ResolveTarget("missing", "")
	assert.False(t, ok)
}
