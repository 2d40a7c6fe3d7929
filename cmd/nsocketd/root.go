/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nsocketd",
		Short: "TCP/UDP framing server with a shared-memory IPC bus",
		RunE:  runDaemon,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")
	cmd.PersistentFlags().String("log-level", "info", "panic|fatal|error|warning|info|debug")
	cmd.PersistentFlags().String("tcp-address", "", "TCP listen address, e.g. :9000 (empty disables the TCP server)")
	cmd.PersistentFlags().String("udp-address", "", "UDP listen address, e.g. :9001 (empty disables the UDP server)")
	cmd.PersistentFlags().String("ipc-proc-name", "nsocketd", "this process's IPC bus registration name")
	cmd.PersistentFlags().String("ipc-forward-to", "", "IPC process name every inbound frame is forwarded to")

	_ = viper.BindPFlag("log_level", cmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("tcp.address", cmd.PersistentFlags().Lookup("tcp-address"))
	_ = viper.BindPFlag("udp.address", cmd.PersistentFlags().Lookup("udp-address"))
	_ = viper.BindPFlag("ipc.proc_name", cmd.PersistentFlags().Lookup("ipc-proc-name"))
	_ = viper.BindPFlag("ipc.forward_to", cmd.PersistentFlags().Lookup("ipc-forward-to"))

	return cmd
}

func loadConfig() (Config, error) {
	cfg := defaultConfig()

	viper.SetEnvPrefix("NSOCKETD")
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("reading config file: %w", err)
		}
		// Listen config replaces are logged only; the TCP/UDP listeners
		// and the IPC bus are not torn down and re-wired on the fly —
		// a changed bind address still requires a restart.
		viper.OnConfigChange(func(e fsnotify.Event) {
			fmt.Fprintf(os.Stderr, "config file changed: %s (restart to apply)\n", e.Name)
		})
		viper.WatchConfig()
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unmarshalling config: %w", err)
	}
	return cfg, nil
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	d, err := newDaemon(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = d.start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return d.stop(shutdownCtx)
}
