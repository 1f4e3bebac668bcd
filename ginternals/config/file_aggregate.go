package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/ngit-go/ngit/internal/env"
	"gopkg.in/ini.v1"
)

// forbiddenKeys lists the section/key names that are rejected outright:
// they correspond to JavaScript object-prototype properties and have
// no business appearing in a git config file.
var forbiddenKeys = map[string]struct{}{
	"__proto__":   {},
	"constructor": {},
	"prototype":   {},
}

// ErrForbiddenKey is returned when a config file uses one of the
// forbidden section or key names
var ErrForbiddenKey = errors.New("config key is forbidden")

// defaultLoadOption contains the params used to load the config files
//
//nolint:gochecknoglobals // treat this as a const: it's never mutated
var defaultLoadOption = ini.LoadOptions{
	SkipUnrecognizableLines: true,
}

// defaultConfig generates a basic default git config using the
// most common options
func defaultConfig() (*ini.File, error) {
	cfg := ini.Empty(defaultLoadOption)

	core := cfg.Section("core")
	coreCfg := map[string]string{
		"repositoryformatversion": "0",
		"filemode":                "true",
		"logallrefupdates":        "true",
		"ignorecase":              "true",
		"precomposeunicode":       "true",
	}
	for k, v := range coreCfg {
		if _, err := core.NewKey(k, v); err != nil {
			return nil, fmt.Errorf("could not set core.%s: %w", k, err)
		}
	}

	return cfg, nil
}

// FileAggregate represents the merged view of a repository's config
// files. Accessors check the local (repo-scope) file first and fall
// back to the global (user-scope) file, matching how git itself lets
// repo-local settings override the user's.
type FileAggregate struct {
	cfg    *Config
	global *ini.File
	local  *ini.File
}

// Save persists the changes made to the repo-scope config file
func (cfg *FileAggregate) Save() error {
	return cfg.local.SaveTo(cfg.cfg.LocalConfig)
}

// RepoFormatVersion returns the version of the format of the repo
func (cfg *FileAggregate) RepoFormatVersion() (version int, ok bool) {
	source := cfg.global
	if cfg.local.Section("core").HasKey("repositoryformatversion") {
		source = cfg.local
	}

	v, err := source.Section("core").Key("repositoryformatversion").Int()
	if err != nil {
		return 0, false
	}
	return v, true
}

// UpdateRepoFormatVersion updates the version of the format of the repo.
func (cfg *FileAggregate) UpdateRepoFormatVersion(ver string) {
	cfg.local.Section("core").Key("repositoryformatversion").SetValue(ver)
}

// DefaultBranch returns init.defaultBranch, the branch name to use
// when creating a new repository. The value isn't validated.
func (cfg *FileAggregate) DefaultBranch() (name string, ok bool) {
	source := cfg.global
	if cfg.local.Section("init").HasKey("defaultBranch") {
		source = cfg.local
	}

	v := source.Section("init").Key("defaultBranch").String()
	if v == "" {
		return "", false
	}
	return v, true
}

// WorkTree returns core.worktree, the path of the work-tree.
func (cfg *FileAggregate) WorkTree() (workTree string, ok bool) {
	source := cfg.global
	if cfg.local.Section("core").HasKey("worktree") {
		source = cfg.local
	}

	v := source.Section("core").Key("worktree").String()
	return v, v != ""
}

// IsBare returns core.bare.
func (cfg *FileAggregate) IsBare() (isBare, ok bool) {
	source := cfg.global
	if cfg.local.Section("core").HasKey("bare") {
		source = cfg.local
	}

	v, err := source.Section("core").Key("bare").Bool()
	if err != nil {
		return false, false
	}
	return v, true
}

// UpdateIsBare updates the core.bare option.
func (cfg *FileAggregate) UpdateIsBare(isBare bool) {
	cfg.local.Section("core").Key("bare").SetValue(strconv.FormatBool(isBare))
}

// AutoCRLF returns core.autocrlf, one of "true", "false" or "input".
// An unset or unrecognized value is treated as "false".
func (cfg *FileAggregate) AutoCRLF() string {
	source := cfg.global
	if cfg.local.Section("core").HasKey("autocrlf") {
		source = cfg.local
	}

	switch v := source.Section("core").Key("autocrlf").String(); v {
	case "true", "input":
		return v
	default:
		return "false"
	}
}

// IgnoreCase returns core.ignorecase.
func (cfg *FileAggregate) IgnoreCase() bool {
	source := cfg.global
	if cfg.local.Section("core").HasKey("ignorecase") {
		source = cfg.local
	}
	v, _ := source.Section("core").Key("ignorecase").Bool()
	return v
}

// UserName returns user.name.
func (cfg *FileAggregate) UserName() (string, bool) {
	source := cfg.global
	if cfg.local.Section("user").HasKey("name") {
		source = cfg.local
	}
	v := source.Section("user").Key("name").String()
	return v, v != ""
}

// UserEmail returns user.email.
func (cfg *FileAggregate) UserEmail() (string, bool) {
	source := cfg.global
	if cfg.local.Section("user").HasKey("email") {
		source = cfg.local
	}
	v := source.Section("user").Key("email").String()
	return v, v != ""
}

// GPGSign returns commit.gpgsign.
func (cfg *FileAggregate) GPGSign() bool {
	source := cfg.global
	if cfg.local.Section("commit").HasKey("gpgsign") {
		source = cfg.local
	}
	v, _ := source.Section("commit").Key("gpgsign").Bool()
	return v
}

// NewFileAggregate loads all the available config files and returns
// an object with accessors. Files are loaded, in increasing priority
// order, from the user-scope gitconfig ($HOME/.gitconfig or
// %USERPROFILE%\.gitconfig) then the repository-scope config.
func NewFileAggregate(e *env.Env, cfg *Config) (confFile *FileAggregate, err error) {
	confFile = &FileAggregate{
		cfg: cfg,
	}
	configPaths := getPaths(e, cfg)

	// Because we want to use afero instead of the file system, we cannot
	// just provide the file paths to ini.Load. Instead we need to open
	// all the files ourselves, provide the files to ini, and close everything.
	// We use []interface{} because ini.LoadSources wants a slice of interfaces
	files := make([]interface{}, 0, len(configPaths))
	for _, p := range configPaths {
		_, sErr := cfg.FS.Stat(p)
		if sErr != nil {
			// not every config file is expected to exist on disk
			// so we skip all the ones that don't
			if errors.Is(sErr, os.ErrNotExist) {
				continue
			}
			err = fmt.Errorf("could not check file %s: %w", p, sErr)
			break
		}

		f, fErr := cfg.FS.Open(p)
		if fErr != nil {
			err = fmt.Errorf("could not open file %s: %w", p, fErr)
			break
		}
		files = append(files, f)
	}
	defer func() {
		for _, f := range files {
			//nolint:errcheck // best-effort cleanup, ini already closed what it opened
			f.(io.ReadCloser).Close()
		}
	}()
	if err != nil {
		return nil, err
	}

	confFile.global = ini.Empty(defaultLoadOption)
	switch len(files) {
	case 0:
		if confFile.local, err = defaultConfig(); err != nil {
			return nil, fmt.Errorf("could not create default local config: %w", err)
		}
	case 1:
		confFile.local, err = ini.LoadSources(defaultLoadOption, files[0])
		if err != nil {
			return nil, fmt.Errorf("could not load config file: %w", err)
		}
	default:
		confFile.global, err = ini.LoadSources(defaultLoadOption, files[0], files[1:len(files)-1]...)
		if err != nil {
			return nil, fmt.Errorf("could not aggregate config file: %w", err)
		}
		confFile.local, err = ini.LoadSources(defaultLoadOption, files[len(files)-1])
		if err != nil {
			return nil, fmt.Errorf("could not load config file: %w", err)
		}
	}

	if err := checkForbiddenKeys(confFile.global); err != nil {
		return nil, err
	}
	if err := checkForbiddenKeys(confFile.local); err != nil {
		return nil, err
	}

	return confFile, nil
}

// checkForbiddenKeys rejects config files that use a forbidden
// section or key name
func checkForbiddenKeys(f *ini.File) error {
	for _, section := range f.Sections() {
		if _, bad := forbiddenKeys[section.Name()]; bad {
			return fmt.Errorf("section %q: %w", section.Name(), ErrForbiddenKey)
		}
		for _, key := range section.Keys() {
			if _, bad := forbiddenKeys[key.Name()]; bad {
				return fmt.Errorf("key %q: %w", key.Name(), ErrForbiddenKey)
			}
		}
	}
	return nil
}

func getPaths(e *env.Env, cfg *Config) []string {
	configPaths := []string{}
	if home := e.HomeDir(); home != "" {
		configPaths = append(configPaths, home+string(os.PathSeparator)+".gitconfig")
	}
	configPaths = append(configPaths, cfg.LocalConfig)
	return configPaths
}
