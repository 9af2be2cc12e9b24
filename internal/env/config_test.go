package env_test

import (
	"context"
	"os"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/respd/internal/env"
)

var _ = Describe("env", func() {
	Describe("LoadConfig()", func() {
		AfterEach(func() {
			os.Unsetenv("RESPD_ADDR")
			os.Unsetenv("RESPD_MAX_CONNECTIONS")
			os.Unsetenv("RESPD_REUSEPORT")
		})

		It("uses defaults", func() {
			conf, err := env.LoadConfig(context.Background())
			Expect(err).To(Succeed())

			Expect(conf.Addr).To(Equal("127.0.0.1:6379"))
			Expect(conf.MaxConnections).To(Equal(uint(1023)))
			Expect(conf.MaxDepth).To(Equal(32))
			Expect(conf.MaxUnitSize).To(Equal(64 * 1024 * 1024))
			Expect(conf.Listeners).To(Equal(1))
			Expect(conf.Reuseport).To(BeFalse())
			Expect(conf.HTTPAddr).To(BeEmpty())
			Expect(conf.LogLevel).To(Equal("info"))
		})

		It("reads the environment", func() {
			Expect(os.Setenv("RESPD_ADDR", "0.0.0.0:7000")).To(Succeed())
			Expect(os.Setenv("RESPD_MAX_CONNECTIONS", "10")).To(Succeed())
			Expect(os.Setenv("RESPD_REUSEPORT", "true")).To(Succeed())

			conf, err := env.LoadConfig(context.Background())
			Expect(err).To(Succeed())

			Expect(conf.Addr).To(Equal("0.0.0.0:7000"))
			Expect(conf.MaxConnections).To(Equal(uint(10)))
			Expect(conf.Reuseport).To(BeTrue())
		})
	})

	Describe("MakeLogger()", func() {
		It("builds a logger at the requested level", func() {
			log, err := env.MakeLogger("debug")
			Expect(err).To(Succeed())
			Expect(log.Core().Enabled(-1)).To(BeTrue())
		})

		It("rejects unknown levels", func() {
			_, err := env.MakeLogger("chatty")
			Expect(err).To(HaveOccurred())
		})
	})
})
