package main

import (
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type options struct {
	server  string
	timeout time.Duration
	lang    string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:          "riskctl",
		Short:        "Client for the heart-risk prediction service",
		Long:         `Send feature vectors to a running prediction service and audit its prediction log.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.server, "server", "http://localhost:5000", "prediction service base URL")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "request timeout")
	rootCmd.PersistentFlags().StringVar(&opts.lang, "lang", "en", "language tag for number formatting")

	rootCmd.AddCommand(newPredictCmd(opts), newHealthCmd(opts), newAuditCmd(opts))
	return rootCmd
}

func (o *options) client() *http.Client {
	return &http.Client{Timeout: o.timeout}
}

func (o *options) printer() *message.Printer {
	tag, err := language.Parse(o.lang)
	if err != nil {
		tag = language.English
	}
	return message.NewPrinter(tag)
}
