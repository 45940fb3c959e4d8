package mergecmder_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	mergecmder "github.com/spoolworks/spool/cmd/spool/merge"
)

func mustGit(dir string, args ...string) string {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	ExpectWithOffset(1, err).NotTo(HaveOccurred(), "git %v: %s", args, out)
	return string(out)
}

func writeFile(dir, name, content string) {
	ExpectWithOffset(1, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644)).To(Succeed())
}

func localBranches(dir string) []string {
	out := strings.TrimSpace(mustGit(dir, "branch", "--format=%(refname:short)"))
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

var _ = Describe("Merge Command", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "merge-test-*")
		Expect(err).NotTo(HaveOccurred())
		tmpDir, err = filepath.EvalSymlinks(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		mustGit(tmpDir, "init")
		mustGit(tmpDir, "config", "user.email", "test@example.com")
		mustGit(tmpDir, "config", "user.name", "Test")
		mustGit(tmpDir, "config", "commit.gpgsign", "false")

		writeFile(tmpDir, "README.md", "# scratch\n")
		mustGit(tmpDir, "add", ".")
		mustGit(tmpDir, "commit", "-m", "initial commit")
		mustGit(tmpDir, "branch", "-m", "main")

		// feature branch one commit ahead of main
		mustGit(tmpDir, "checkout", "-b", "feature")
		writeFile(tmpDir, "feature.txt", "feature work\n")
		mustGit(tmpDir, "add", ".")
		mustGit(tmpDir, "commit", "-m", "add feature")
		mustGit(tmpDir, "checkout", "main")

		origDir, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tmpDir)).To(Succeed())
		DeferCleanup(func() { os.Chdir(origDir) })
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("NewMergeCmd", func() {
		It("creates a command with expected properties", func() {
			cmd := mergecmder.NewMergeCmd()
			Expect(cmd.Use).To(Equal("merge [branch]"))
			Expect(cmd.Short).NotTo(BeEmpty())
		})

		It("has merge strategy and cleanup flags", func() {
			cmd := mergecmder.NewMergeCmd()
			for _, name := range []string{"squash", "ff-only", "no-ff", "delete", "into", "cleanup", "dry-run"} {
				Expect(cmd.Flags().Lookup(name)).NotTo(BeNil(), "missing flag %s", name)
			}
		})

		It("rejects combined merge strategies", func() {
			cmd := mergecmder.NewMergeCmd()
			cmd.SetArgs([]string{"feature", "--squash", "--ff-only"})

			err := cmd.Execute()
			Expect(err).To(HaveOccurred())
		})

		It("requires a branch argument outside cleanup mode", func() {
			cmd := mergecmder.NewMergeCmd()
			cmd.SetArgs([]string{})

			err := cmd.Execute()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("branch argument required"))
		})

		It("rejects a branch argument in cleanup mode", func() {
			cmd := mergecmder.NewMergeCmd()
			cmd.SetArgs([]string{"feature", "--cleanup"})

			err := cmd.Execute()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("--cleanup takes no branch argument"))
		})
	})

	Describe("merging", func() {
		It("merges the branch into the current one", func() {
			cmd := mergecmder.NewMergeCmd()
			cmd.SetArgs([]string{"feature"})

			Expect(cmd.Execute()).To(Succeed())
			_, err := os.Stat(filepath.Join(tmpDir, "feature.txt"))
			Expect(err).NotTo(HaveOccurred())
		})

		It("checks out the target with --into", func() {
			mustGit(tmpDir, "checkout", "-b", "other")

			cmd := mergecmder.NewMergeCmd()
			cmd.SetArgs([]string{"feature", "--into", "main"})

			Expect(cmd.Execute()).To(Succeed())
			current := strings.TrimSpace(mustGit(tmpDir, "rev-parse", "--abbrev-ref", "HEAD"))
			Expect(current).To(Equal("main"))
			_, err := os.Stat(filepath.Join(tmpDir, "feature.txt"))
			Expect(err).NotTo(HaveOccurred())
		})

		It("refuses to merge a branch into itself", func() {
			cmd := mergecmder.NewMergeCmd()
			cmd.SetArgs([]string{"main"})

			err := cmd.Execute()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("into itself"))
		})

		It("refuses a dirty worktree", func() {
			writeFile(tmpDir, "README.md", "changed\n")

			cmd := mergecmder.NewMergeCmd()
			cmd.SetArgs([]string{"feature"})

			err := cmd.Execute()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("uncommitted changes"))
		})

		It("stages without committing with --squash", func() {
			cmd := mergecmder.NewMergeCmd()
			cmd.SetArgs([]string{"feature", "--squash"})

			Expect(cmd.Execute()).To(Succeed())

			// changes staged, no merge commit yet
			status := mustGit(tmpDir, "status", "--porcelain")
			Expect(status).To(ContainSubstring("feature.txt"))
			log := mustGit(tmpDir, "log", "--oneline")
			Expect(log).NotTo(ContainSubstring("add feature"))
		})

		It("deletes the source branch with --delete", func() {
			cmd := mergecmder.NewMergeCmd()
			cmd.SetArgs([]string{"feature", "--delete"})

			Expect(cmd.Execute()).To(Succeed())
			Expect(localBranches(tmpDir)).NotTo(ContainElement("feature"))
		})

		It("keeps the source branch after a squash even with --delete", func() {
			cmd := mergecmder.NewMergeCmd()
			cmd.SetArgs([]string{"feature", "--squash", "--delete"})

			Expect(cmd.Execute()).To(Succeed())
			Expect(localBranches(tmpDir)).To(ContainElement("feature"))
		})
	})

	Describe("--cleanup", func() {
		BeforeEach(func() {
			mustGit(tmpDir, "merge", "feature")
		})

		It("deletes branches already merged into the current one", func() {
			cmd := mergecmder.NewMergeCmd()
			cmd.SetArgs([]string{"--cleanup"})

			Expect(cmd.Execute()).To(Succeed())
			Expect(localBranches(tmpDir)).To(ConsistOf("main"))
		})

		It("lists without deleting with --dry-run", func() {
			cmd := mergecmder.NewMergeCmd()
			cmd.SetArgs([]string{"--cleanup", "--dry-run"})

			Expect(cmd.Execute()).To(Succeed())
			Expect(localBranches(tmpDir)).To(ConsistOf("main", "feature"))
		})

		It("never deletes protected branches", func() {
			mustGit(tmpDir, "branch", "develop")

			cmd := mergecmder.NewMergeCmd()
			cmd.SetArgs([]string{"--cleanup"})

			Expect(cmd.Execute()).To(Succeed())
			Expect(localBranches(tmpDir)).To(ConsistOf("main", "develop"))
		})

		It("reports nothing to do when only protected branches are merged", func() {
			mustGit(tmpDir, "branch", "-d", "feature")

			cmd := mergecmder.NewMergeCmd()
			cmd.SetArgs([]string{"--cleanup"})

			Expect(cmd.Execute()).To(Succeed())
			Expect(localBranches(tmpDir)).To(ConsistOf("main"))
		})
	})
})
