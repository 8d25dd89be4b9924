package configcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/tidwall/gjson"

	configcmder "github.com/papercomputeco/botstream/cmd/botstream/config"
)

// execute runs the config command with args and returns its output.
func execute(args ...string) (string, error) {
	var out bytes.Buffer
	cmd := configcmder.NewConfigCmd()
	cmd.SetOut(&out)
	cmd.SetErr(GinkgoWriter)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

var _ = Describe("NewConfigCmd", func() {
	It("creates a command with the correct use string", func() {
		Expect(configcmder.NewConfigCmd().Use).To(Equal("config"))
	})

	It("has set, get, and list subcommands", func() {
		var names []string
		for _, sub := range configcmder.NewConfigCmd().Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements("set", "get", "list"))
	})
})

var _ = Describe("Config command execution", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "botstream-config-test-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, tmpDir)

		origDir, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		// A local .botstream dir is picked up by the manager.
		Expect(os.MkdirAll(filepath.Join(tmpDir, ".botstream"), 0o755)).To(Succeed())
		Expect(os.Chdir(tmpDir)).To(Succeed())
		DeferCleanup(os.Chdir, origDir)
	})

	Describe("set subcommand", func() {
		It("writes config.toml", func() {
			out, err := execute("set", "client.bot", "weather-bot")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("weather-bot"))

			data, err := os.ReadFile(filepath.Join(tmpDir, ".botstream", "config.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring(`bot = "weather-bot"`))
		})

		It("rejects unknown keys and lists the valid ones", func() {
			_, err := execute("set", "access_key", "secret")
			Expect(err).To(MatchError(ContainSubstring("Valid keys: client.base_url")))
		})

		It("requires exactly two arguments", func() {
			_, err := execute("set", "client.bot")
			Expect(err).To(HaveOccurred())

			_, err = execute("set")
			Expect(err).To(HaveOccurred())
		})

		It("rejects invalid uint values", func() {
			_, err := execute("set", "toolbox.workers", "not-a-number")
			Expect(err).To(HaveOccurred())
		})

		It("rejects invalid durations", func() {
			_, err := execute("set", "client.timeout", "whenever")
			Expect(err).To(HaveOccurred())
		})

		It("rejects a base URL that is not http(s)", func() {
			_, err := execute("set", "client.base_url", "bots.example")
			Expect(err).To(MatchError(ContainSubstring("http(s) URL")))
		})
	})

	Describe("get subcommand", func() {
		It("gets a previously set value", func() {
			_, err := execute("set", "client.bot", "weather-bot")
			Expect(err).NotTo(HaveOccurred())

			out, err := execute("get", "client.bot")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("Config file:"))
			Expect(out).To(ContainSubstring("weather-bot"))
		})

		It("marks unset keys", func() {
			out, err := execute("get", "client.bot")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("<not set>"))
		})

		It("prints only the value with --raw", func() {
			out, err := execute("get", "--raw", "client.base_url")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal("https://api.poe.com\n"))
		})

		It("rejects unknown keys", func() {
			_, err := execute("get", "invalid_key")
			Expect(err).To(HaveOccurred())
		})

		It("requires exactly one argument", func() {
			_, err := execute("get")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("list subcommand", func() {
		It("lists defaults and values that were set", func() {
			_, err := execute("set", "client.xml_tools", "true")
			Expect(err).NotTo(HaveOccurred())

			out, err := execute("list")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("Using config file:"))
			Expect(out).To(MatchRegexp(`client\.xml_tools\s+= "true"`))
			Expect(out).To(ContainSubstring(`"https://api.poe.com"`))
			Expect(out).To(MatchRegexp(`client\.bot\s+= <not set>`))
		})

		It("prints values nested by section with --json", func() {
			_, err := execute("set", "client.bot", "weather-bot")
			Expect(err).NotTo(HaveOccurred())

			out, err := execute("list", "--json")
			Expect(err).NotTo(HaveOccurred())
			Expect(gjson.Valid(out)).To(BeTrue())
			Expect(gjson.Get(out, "client.bot").String()).To(Equal("weather-bot"))
			Expect(gjson.Get(out, "client.base_url").String()).To(Equal("https://api.poe.com"))
			Expect(gjson.Get(out, "toolbox.workers").String()).To(Equal("3"))
			Expect(gjson.Get(out, "sim.chunk_size").Exists()).To(BeFalse())
		})

		It("rejects any arguments", func() {
			_, err := execute("list", "extra")
			Expect(err).To(HaveOccurred())
		})
	})
})
