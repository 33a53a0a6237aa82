package cmd

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanlaunch/internal/config"
	lerrors "github.com/Aman-CERP/amanlaunch/internal/errors"
	"github.com/Aman-CERP/amanlaunch/internal/launcher"
)

type sourceJSON struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
	Enabled  bool   `json:"enabled"`
}

func listSources(t *testing.T) []sourceJSON {
	t.Helper()
	out, err := execute(t, "sources", "list", "--json")
	require.NoError(t, err)
	var infos []sourceJSON
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	return infos
}

func sourceIDs(infos []sourceJSON) []string {
	ids := make([]string, len(infos))
	for i, in := range infos {
		ids[i] = in.ID
	}
	return ids
}

func TestSourcesCmd_ListDefaultOrder(t *testing.T) {
	newTestEnv(t, testConfig)

	infos := listSources(t)

	assert.Equal(t, []string{"calculator", "apps", "quicklinks", "files", "websearch"}, sourceIDs(infos))
	assert.Equal(t, 1, infos[0].Position)
	for _, in := range infos {
		assert.True(t, in.Enabled, in.ID)
	}
}

func TestSourcesCmd_ListText(t *testing.T) {
	newTestEnv(t, testConfig)

	out, err := execute(t, "sources", "list")

	require.NoError(t, err)
	assert.Contains(t, out, "1. calculator")
	assert.Contains(t, out, "Ranking: frequency, then manual order")
}

func TestSourcesCmd_DisablePersists(t *testing.T) {
	// Given: the default configuration
	env := newTestEnv(t, testConfig)

	// When: disabling websearch
	out, err := execute(t, "sources", "disable", "websearch")

	// Then: the change shows up in later commands and in the file
	require.NoError(t, err)
	assert.Contains(t, out, "websearch disabled")

	infos := listSources(t)
	assert.False(t, infos[4].Enabled)

	cfg, err := config.LoadFile(env.configPath)
	require.NoError(t, err)
	assert.False(t, cfg.Sources.WebSearch.Enabled)

	// And: the rest of the user's file survives
	assert.Len(t, cfg.Quicklinks, 1)

	// When: enabling it again
	_, err = execute(t, "sources", "enable", "websearch")
	require.NoError(t, err)
	assert.True(t, listSources(t)[4].Enabled)
}

func TestSourcesCmd_Move(t *testing.T) {
	newTestEnv(t, testConfig)

	out, err := execute(t, "sources", "move", "files", "up")

	require.NoError(t, err)
	assert.Contains(t, out, "Moved files up")
	assert.Equal(t, []string{"calculator", "apps", "files", "quicklinks", "websearch"}, sourceIDs(listSources(t)))
}

func TestSourcesCmd_MoveAtBoundary(t *testing.T) {
	newTestEnv(t, testConfig)

	out, err := execute(t, "sources", "move", "calculator", "up")

	require.NoError(t, err)
	assert.Contains(t, out, "calculator is already at the top")
}

func TestSourcesCmd_Errors(t *testing.T) {
	newTestEnv(t, testConfig)

	tests := []struct {
		name string
		args []string
		code string
	}{
		{"unknown source", []string{"sources", "disable", "nope"}, lerrors.ErrCodeUnknownSource},
		{"bad direction", []string{"sources", "move", "files", "left"}, lerrors.ErrCodeInvalidInput},
		{"bad frequency", []string{"sources", "frequency", "maybe"}, lerrors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.code, lerrors.GetCode(err))
		})
	}
}

func TestSourcesCmd_FrequencyOff(t *testing.T) {
	env := newTestEnv(t, testConfig)

	out, err := execute(t, "sources", "frequency", "off")

	require.NoError(t, err)
	assert.Contains(t, out, "Frequency ranking off")

	cfg, err := config.LoadFile(env.configPath)
	require.NoError(t, err)
	assert.False(t, cfg.Ranking.UseFrequency)

	out, err = execute(t, "sources", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Ranking: manual order")
}

func TestCapitalize(t *testing.T) {
	assert.Equal(t, "Enable", capitalize("enable"))
	assert.Equal(t, "", capitalize(""))
}

func TestSaveSettings_ConcurrentWritesStayConsistent(t *testing.T) {
	// Given: a wired app that writes settings back to the config file
	env := newTestEnv(t, testConfig)
	app, err := bootstrap(context.Background(), withPersistedSettings())
	require.NoError(t, err)
	t.Cleanup(app.Close)

	order := app.engine.Settings().SourceOrder
	quiet := launcher.Settings{SourceOrder: order, Disabled: map[string]bool{"websearch": true}}
	loud := launcher.Settings{SourceOrder: order, UseFrequency: true}

	// When: two different settings are saved from many goroutines
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		s := quiet
		if i%2 == 0 {
			s = loud
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, app.saveSettings(s))
		}()
	}
	wg.Wait()

	// Then: the file holds one of them whole, never a mix
	cfg, err := config.LoadFile(env.configPath)
	require.NoError(t, err)
	assert.Equal(t, cfg.Ranking.UseFrequency, cfg.Sources.WebSearch.Enabled)
	assert.Len(t, cfg.Quicklinks, 1)
}
