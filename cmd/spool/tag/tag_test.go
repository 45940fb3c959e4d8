package tagcmder_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	tagcmder "github.com/spoolworks/spool/cmd/spool/tag"
)

func mustGit(dir string, args ...string) string {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	ExpectWithOffset(1, err).NotTo(HaveOccurred(), "git %v: %s", args, out)
	return string(out)
}

func tagNames(dir string) []string {
	out := strings.TrimSpace(mustGit(dir, "tag"))
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

var _ = Describe("Tag Command", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "tag-test-*")
		Expect(err).NotTo(HaveOccurred())
		tmpDir, err = filepath.EvalSymlinks(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		mustGit(tmpDir, "init")
		mustGit(tmpDir, "config", "user.email", "test@example.com")
		mustGit(tmpDir, "config", "user.name", "Test")
		mustGit(tmpDir, "config", "commit.gpgsign", "false")

		Expect(os.WriteFile(filepath.Join(tmpDir, "README.md"), []byte("# scratch\n"), 0o644)).To(Succeed())
		mustGit(tmpDir, "add", ".")
		mustGit(tmpDir, "commit", "-m", "initial commit")

		origDir, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tmpDir)).To(Succeed())
		DeferCleanup(func() { os.Chdir(origDir) })
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("NewTagCmd", func() {
		It("creates a command with expected properties", func() {
			cmd := tagcmder.NewTagCmd()
			Expect(cmd.Use).To(Equal("tag"))
			Expect(cmd.Short).NotTo(BeEmpty())
		})

		It("has bump and control flags", func() {
			cmd := tagcmder.NewTagCmd()
			for _, name := range []string{"major", "minor", "patch", "pre", "message", "push", "dry-run", "force"} {
				Expect(cmd.Flags().Lookup(name)).NotTo(BeNil(), "missing flag %s", name)
			}
		})

		It("rejects combined bump flags", func() {
			cmd := tagcmder.NewTagCmd()
			cmd.SetArgs([]string{"--major", "--minor"})

			err := cmd.Execute()
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("first tag", func() {
		It("starts at v0.1.0 when the repo has no tags", func() {
			cmd := tagcmder.NewTagCmd()
			cmd.SetArgs([]string{})

			Expect(cmd.Execute()).To(Succeed())
			Expect(tagNames(tmpDir)).To(ConsistOf("v0.1.0"))
		})
	})

	Describe("bumping", func() {
		BeforeEach(func() {
			mustGit(tmpDir, "tag", "v1.2.3")
		})

		It("bumps patch by default", func() {
			cmd := tagcmder.NewTagCmd()
			cmd.SetArgs([]string{})

			Expect(cmd.Execute()).To(Succeed())
			Expect(tagNames(tmpDir)).To(ContainElement("v1.2.4"))
		})

		It("bumps minor with --minor", func() {
			cmd := tagcmder.NewTagCmd()
			cmd.SetArgs([]string{"--minor"})

			Expect(cmd.Execute()).To(Succeed())
			Expect(tagNames(tmpDir)).To(ContainElement("v1.3.0"))
		})

		It("bumps major with --major", func() {
			cmd := tagcmder.NewTagCmd()
			cmd.SetArgs([]string{"--major"})

			Expect(cmd.Execute()).To(Succeed())
			Expect(tagNames(tmpDir)).To(ContainElement("v2.0.0"))
		})

		It("appends a pre-release identifier", func() {
			cmd := tagcmder.NewTagCmd()
			cmd.SetArgs([]string{"--minor", "--pre", "rc.1"})

			Expect(cmd.Execute()).To(Succeed())
			Expect(tagNames(tmpDir)).To(ContainElement("v1.3.0-rc.1"))
		})

		It("creates an annotated tag with --message", func() {
			cmd := tagcmder.NewTagCmd()
			cmd.SetArgs([]string{"--message", "cut release"})

			Expect(cmd.Execute()).To(Succeed())
			out := mustGit(tmpDir, "cat-file", "-t", "v1.2.4")
			Expect(strings.TrimSpace(out)).To(Equal("tag"))
		})

		It("rejects a non-semver latest tag", func() {
			mustGit(tmpDir, "commit", "--allow-empty", "-m", "next")
			mustGit(tmpDir, "tag", "release-candidate")

			cmd := tagcmder.NewTagCmd()
			cmd.SetArgs([]string{})

			err := cmd.Execute()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("not semver"))
		})
	})

	Describe("--dry-run", func() {
		It("creates no tag", func() {
			mustGit(tmpDir, "tag", "v0.3.0")

			cmd := tagcmder.NewTagCmd()
			cmd.SetArgs([]string{"--dry-run"})

			Expect(cmd.Execute()).To(Succeed())
			Expect(tagNames(tmpDir)).To(ConsistOf("v0.3.0"))
		})
	})

	Describe("dirty worktree", func() {
		BeforeEach(func() {
			Expect(os.WriteFile(filepath.Join(tmpDir, "README.md"), []byte("changed\n"), 0o644)).To(Succeed())
		})

		It("refuses to tag", func() {
			cmd := tagcmder.NewTagCmd()
			cmd.SetArgs([]string{})

			err := cmd.Execute()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("uncommitted changes"))
		})

		It("tags anyway with --force", func() {
			cmd := tagcmder.NewTagCmd()
			cmd.SetArgs([]string{"--force"})

			Expect(cmd.Execute()).To(Succeed())
			Expect(tagNames(tmpDir)).To(ConsistOf("v0.1.0"))
		})
	})
})
