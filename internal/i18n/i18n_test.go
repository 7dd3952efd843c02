package i18n

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_BuiltinCatalogs(t *testing.T) {
	m, err := Load("en", "")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"en", "ru"}, m.Languages())
	assert.Equal(t, "Close", m.Text("paging.close", "en"))
	assert.Equal(t, "Закрыть", m.Text("paging.close", "ru"))
}

func TestTranslator_FallbackAndFormatting(t *testing.T) {
	src := fstest.MapFS{
		"en.yaml": {Data: []byte("en:\n  greet: \"Hello, %s\"\n  only_en: yes\n")},
		"de.yml":  {Data: []byte("de:\n  greet: \"Hallo, %s\"\n")},
	}

	m, err := NewManager("en", src)
	require.NoError(t, err)

	de := m.Translator("DE")
	assert.Equal(t, "de", de.Lang())
	assert.Equal(t, "Hallo, Ann", de.Tf("greet", "Ann"))
	assert.Equal(t, "yes", de.T("only_en"))
	assert.Equal(t, "missing.key", de.T("missing.key"))

	assert.Equal(t, "en", m.Translator("fr").Lang())
}

func TestNewManager_DefaultLanguageRequired(t *testing.T) {
	_, err := NewManager("en", fstest.MapFS{"ru.yaml": {Data: []byte("ru:\n  a: b\n")}})
	assert.Error(t, err)
}

func TestLoad_DirectoryOverridesBuiltin(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "en.yaml"), []byte("en:\n  paging:\n    close: Dismiss\n"), 0o600))

	m, err := Load("en", dir)
	require.NoError(t, err)
	assert.Equal(t, "Dismiss", m.Text("paging.close", "en"))
	assert.Equal(t, "Main menu", m.Text("menu.title", "en"))
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "en.yaml")
	require.NoError(t, os.WriteFile(file, []byte("en:\n  paging:\n    close: One\n"), 0o600))

	m, err := Load("en", dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Watch(ctx, dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	}()

	require.Eventually(t, func() bool {
		_ = os.WriteFile(file, []byte("en:\n  paging:\n    close: Two\n"), 0o600)
		return m.Text("paging.close", "en") == "Two"
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	<-done
}

func TestTranslator_RegionalTagsAndEmptyFiles(t *testing.T) {
	src := fstest.MapFS{
		"en.yaml":    {Data: []byte("en:\n  lang: English\n")},
		"pt.yaml":    {Data: []byte("PT:\n  lang: Português\n  list: [a, b]\n")},
		"empty.yaml": {Data: []byte("")},
		"notes.txt":  {Data: []byte("not a catalog")},
	}

	m, err := NewManager("en-GB", src)
	require.NoError(t, err)

	assert.Equal(t, []string{"en", "pt"}, m.Languages())
	assert.Equal(t, "pt", m.Translator("pt-BR").Lang())
	assert.Equal(t, "Português", m.Text("lang", "pt_BR"))
	assert.Equal(t, "list", m.Text("list", "pt"))
	assert.Equal(t, "English", m.Text("lang", ""))
}

func TestNewManager_RejectsNonMappingCatalog(t *testing.T) {
	_, err := NewManager("en", fstest.MapFS{"en.yaml": {Data: []byte("- en\n- ru\n")}})
	assert.Error(t, err)
}
