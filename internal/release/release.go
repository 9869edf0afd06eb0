// SPDX-License-Identifier: MPL-2.0

package release

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/redlab/redlab/internal/manifest"
	"github.com/redlab/redlab/internal/strategy"
	"github.com/redlab/redlab/internal/taskgraph"
	"github.com/redlab/redlab/internal/toolexec"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

// Target names registered by Define.
const (
	PrereleaseTarget       = "prerelease"
	UpdateVersionTarget    = "update_version"
	CommitNewVersionTarget = "commit_newversion"
	TagTarget              = "tag"
	ClobberTarget          = "clobber"
	InstallTarget          = "install"
	TestTarget             = "test"
	HostTestTarget         = "hosttest"
	DocsTarget             = "docs"
	PublishTarget          = "publish"
	ReleaseTarget          = "release"
	DefaultTarget          = "default"
)

var bannerStyle = lipgloss.NewStyle().
	Border(lipgloss.NormalBorder()).
	BorderForeground(lipgloss.Color("#7C3AED")).
	Padding(0, 1)

// Releaser owns the release targets of one graph.
type Releaser struct {
	env    *strategy.Env
	active []strategy.PackageStrategy
	opts   Options

	// rewritten holds the files update_version changed in this run.
	rewritten []string
}

// Define registers the release targets. sel is the packaging selection the
// publish and update_version targets draw on.
func Define(ctx context.Context, env *strategy.Env, sel *strategy.Selection, opts Options) (*Releaser, error) {
	opts.setDefaults(env.Metadata.Name)
	if env.Logger == nil {
		env.Logger = log.New(io.Discard)
	}
	r := &Releaser{env: env, opts: opts}
	if sel != nil {
		r.active = sel.Active
	}

	targets := []*taskgraph.Target{
		taskgraph.Task(PrereleaseTarget, nil, r.prerelease).
			Describe("Check that a release can be made"),
		taskgraph.Task(UpdateVersionTarget, []string{PrereleaseTarget}, r.updateVersion).
			Describe("Write the release version into the sources"),
		taskgraph.Task(CommitNewVersionTarget, []string{UpdateVersionTarget}, r.commitNewVersion).
			Describe("Commit the files update_version changed"),
		taskgraph.Task(TagTarget, []string{PrereleaseTarget}, r.tag).
			Describe("Tag the release in version control"),
		taskgraph.Task(ClobberTarget, nil, r.clobber).
			Describe("Remove every generated file"),
		taskgraph.Task(InstallTarget, nil, r.runCommandAction(opts.Commands.Install, "")).
			Describe("Install the project"),
		taskgraph.Task(TestTarget, nil, r.runCommandAction(opts.Commands.Test, opts.TestDir)).
			Describe("Run the test suite"),
		taskgraph.Task(HostTestTarget, nil, r.hostTest).
			Describe("Run the test suite on every test host"),
		taskgraph.Task(PublishTarget, []string{strategy.PackageTarget}, r.publish).
			Describe("Copy built packages to the publish directory"),
	}
	for _, t := range targets {
		if err := env.Graph.Register(t); err != nil {
			return nil, err
		}
	}

	releaseDeps := []string{PrereleaseTarget, ClobberTarget, CommitNewVersionTarget, TagTarget}
	docs, err := r.defineDocs(ctx)
	if err != nil {
		return nil, err
	}
	if docs {
		releaseDeps = append(releaseDeps, DocsTarget)
	}
	releaseDeps = append(releaseDeps, strategy.PackageTarget, PublishTarget)

	release := taskgraph.Task(ReleaseTarget, releaseDeps, r.complete).
		Describe("Make a new release")
	if err := env.Graph.Register(release); err != nil {
		return nil, err
	}

	if opts.DefaultTarget != "" {
		def := taskgraph.Task(DefaultTarget, []string{opts.DefaultTarget}, nil).
			Describe("Run " + opts.DefaultTarget)
		if err := env.Graph.Register(def); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Rewritten returns the files update_version changed.
func (r *Releaser) Rewritten() []string {
	return append([]string(nil), r.rewritten...)
}

func (r *Releaser) prerelease(ctx context.Context) error {
	md := r.env.Metadata
	version := md.ResolveVersion(ctx)
	current := md.CurrentVersion(ctx)
	r.banner(fmt.Sprintf("Making release %s\n(current version %s)", version, current))

	if r.opts.Version == "" {
		return fmt.Errorf("%w: usage: redlab run release --rel x.y.z [--reuse tag_suffix]", ErrReleaseVersionRequired)
	}
	if version == current && r.opts.Reuse == "" {
		return fmt.Errorf("%w: current version is %s; set a reuse suffix to release it again", ErrVersionConflict, current)
	}

	if r.opts.TestMode {
		r.env.Logger.Info("test mode: skipping working tree check")
		return nil
	}
	r.env.Logger.Info("checking for uncommitted changes")
	res, err := r.runChecked(ctx, r.opts.Commands.Status, CommandData{}, "")
	if err != nil {
		return err
	}
	if out := strings.TrimSpace(res.Stdout); out != "" {
		return &DirtyTreeError{Changes: strings.Split(out, "\n")}
	}
	r.env.Logger.Info("working tree is clean")
	return nil
}

func (r *Releaser) updateVersion(ctx context.Context) error {
	md := r.env.Metadata
	version := md.ResolveVersion(ctx)
	if version == md.CurrentVersion(ctx) {
		r.env.Logger.Info("no version change; skipping version update", "version", version)
		return nil
	}

	r.env.Logger.Info("updating version", "version", version)
	if r.opts.VersionFile != "" {
		changed, err := manifest.RewriteVersionFile(r.opts.VersionFile, r.opts.VersionConst, version)
		if err != nil {
			return err
		}
		if changed {
			r.rewritten = append(r.rewritten, r.opts.VersionFile)
		}
	}
	for _, s := range r.active {
		u, ok := s.(strategy.VersionUpdater)
		if !ok {
			continue
		}
		path, changed, err := u.UpdateVersion(ctx, r.env)
		if err != nil {
			return fmt.Errorf("update %s version: %w", s.Name(), err)
		}
		if changed {
			r.rewritten = append(r.rewritten, path)
		}
	}
	return nil
}

func (r *Releaser) commitNewVersion(ctx context.Context) error {
	if len(r.rewritten) == 0 {
		r.env.Logger.Info("no version files changed; nothing to commit")
		return nil
	}
	data := r.data(ctx)
	if r.opts.TestMode {
		r.env.Logger.Info("test mode: skipping commit of new version", "files", data.Files)
		return nil
	}
	_, err := r.runChecked(ctx, r.opts.Commands.Commit, data, "")
	return err
}

func (r *Releaser) tag(ctx context.Context) error {
	data := r.data(ctx)
	r.env.Logger.Info("tagging release", "tag", data.Tag)
	if r.opts.TestMode {
		r.env.Logger.Info("test mode: skipping tag", "tag", data.Tag)
		return nil
	}
	_, err := r.runChecked(ctx, r.opts.Commands.Tag, data, "")
	return err
}

func (r *Releaser) clobber(context.Context) error {
	dirs := []string{r.env.Metadata.PackageDir}
	if r.opts.Commands.Docs != "" {
		dirs = append(dirs, r.docsDir())
	}
	for _, dir := range dirs {
		if dir == "" || filepath.Clean(dir) == "." {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("remove %s: %w", dir, err)
		}
		r.env.Logger.Debug("removed", "path", dir)
	}
	return nil
}

func (r *Releaser) docsDir() string {
	if filepath.IsAbs(r.opts.DocsDir) {
		return r.opts.DocsDir
	}
	return filepath.Join(r.env.Metadata.Root, r.opts.DocsDir)
}

func (r *Releaser) hostTest(ctx context.Context) error {
	hosts := r.opts.Hosts
	if len(hosts) == 0 {
		r.env.Logger.Warn("no test hosts configured; nothing to do")
		return nil
	}
	base := r.data(ctx)
	cmds := make(map[string]toolexec.Command, len(hosts))
	for _, host := range hosts {
		data := base
		data.Host = host
		cmd, err := r.command(r.opts.Commands.HostTest, data, "")
		if err != nil {
			return err
		}
		cmds[host] = cmd
	}

	name := r.env.Metadata.Name
	return toolexec.RunOnHosts(ctx, r.env.Runner, hosts,
		func(host string) toolexec.Command { return cmds[host] },
		func(host string, res toolexec.Result, err error) {
			out := filepath.Join(r.opts.OutputDir, fmt.Sprintf("%s-%stest.out", name, host))
			if err != nil {
				res.Stderr = err.Error()
			}
			if werr := os.WriteFile(out, []byte(res.Output()), 0o644); werr != nil {
				r.env.Logger.Warn("could not save host test output", "host", host, "error", werr)
			}
			if err != nil || !res.Success() {
				r.env.Logger.Error("host test failed", "host", host, "exit", res.ExitCode, "output", out)
				return
			}
			r.env.Logger.Info("host test passed", "host", host)
		})
}

func (r *Releaser) complete(ctx context.Context) error {
	r.banner(fmt.Sprintf("Release %s complete.\nPackages ready to upload.", r.env.Metadata.ResolveVersion(ctx)))
	return nil
}

// defineDocs registers the docs target when a docs command is configured and
// its tool is installed, and extends publish to ship the generated tree.
func (r *Releaser) defineDocs(ctx context.Context) (bool, error) {
	line := r.opts.Commands.Docs
	if line == "" {
		return false, nil
	}
	cmd, err := r.command(line, r.data(ctx), "")
	if err != nil {
		return false, fmt.Errorf("docs command: %w", err)
	}
	if !r.env.Caps.Has(cmd.Name) {
		r.env.Logger.Warn("skipping docs target", "reason", &toolexec.MissingToolError{Tools: []string{cmd.Name}})
		return false, nil
	}

	docs := taskgraph.Task(DocsTarget, nil, r.runCommandAction(line, "")).
		Describe("Generate documentation into " + r.opts.DocsDir)
	if err := r.env.Graph.Register(docs); err != nil {
		return false, err
	}
	if err := r.env.Graph.Extend(PublishTarget, []string{DocsTarget}, r.publishDocs); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Releaser) runCommandAction(line, dir string) taskgraph.Action {
	return func(ctx context.Context) error {
		if line == "" {
			return errors.New("no command configured")
		}
		res, err := r.runChecked(ctx, line, r.data(ctx), dir)
		if out := strings.TrimSpace(res.Output()); out != "" {
			r.env.Logger.Info(out)
		}
		return err
	}
}

func (r *Releaser) data(ctx context.Context) CommandData {
	md := r.env.Metadata
	version := md.ResolveVersion(ctx)
	return CommandData{
		Name:      md.Name,
		Version:   version,
		Tag:       TagName(version, r.opts.Reuse),
		Files:     r.Rewritten(),
		RemoteDir: r.opts.RemoteDir,
	}
}

// command renders line; dir is relative to the project root.
func (r *Releaser) command(line string, data CommandData, dir string) (toolexec.Command, error) {
	cmd, err := toolexec.ParseCommand(line, data)
	if err != nil {
		return toolexec.Command{}, err
	}
	cmd.Dir = filepath.Join(r.env.Metadata.Root, dir)
	return cmd, nil
}

func (r *Releaser) runChecked(ctx context.Context, line string, data CommandData, dir string) (toolexec.Result, error) {
	cmd, err := r.command(line, data, dir)
	if err != nil {
		return toolexec.Result{}, err
	}
	r.env.Logger.Info("running", "command", cmd.String())
	return toolexec.RunChecked(ctx, r.env.Runner, cmd)
}

func (r *Releaser) banner(msg string) {
	fmt.Fprintln(r.opts.Out, bannerStyle.Render(msg))
}
