/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
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

// Command cwatcherd is the fleet monitoring service host binary: it
// loads configuration, wires a runtime.Runtime, serves the Push
// Fabric's WebSocket endpoint over HTTP, and shuts everything down in
// order on SIGINT/SIGTERM (§6).
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	libspv "github.com/spf13/viper"
	gormdb "gorm.io/gorm"

	libgrm "github.com/nabbar/cwatcher/database/gorm"
	liblog "github.com/nabbar/cwatcher/logger"
	loglvl "github.com/nabbar/cwatcher/logger/level"
	libmdl "github.com/nabbar/cwatcher/model"
	"github.com/nabbar/cwatcher/push"
	"github.com/nabbar/cwatcher/runtime"
	"github.com/nabbar/cwatcher/scheduler"
	"github.com/nabbar/cwatcher/sshpool"
	"github.com/nabbar/cwatcher/store"
)

// Exit codes (§6).
const (
	exitOK                = 0
	exitConfigInvalid     = 1
	exitMasterKeyMissing  = 2
	exitStorageUnavailable = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	var configPath string
	flag.StringVar(&configPath, "config", "cwatcherd.yaml", "path to the configuration file")
	var listenAddr string
	flag.StringVar(&listenAddr, "listen", ":8443", "address the Push Fabric's WebSocket endpoint listens on")
	flag.Parse()

	v := libspv.New()
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("CWATCHER")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "cwatcherd: cannot read configuration %s: %v\n", configPath, err)
		return exitConfigInvalid
	}

	ctx := context.Background()
	logger := liblog.New(ctx)
	logger.SetLevel(loglvl.InfoLevel)
	logFn := func() liblog.Logger { return logger }

	cfg := runtime.Config{
		MasterKey:      []byte(v.GetString("master_key")),
		KnownHostsPath: v.GetString("known_hosts_path"),
		Pool: sshpool.Config{
			SessionsPerServer: v.GetInt("ssh_max_per_server"),
			HandshakeTimeout:  v.GetDuration("ssh_connect_timeout_s") * time.Second,
			IdleTTL:           v.GetDuration("ssh_idle_ttl_s") * time.Second,
			AllowTOFU:         v.GetBool("allow_tofu"),
		},
		Scheduler: scheduler.Config{
			Period: v.GetDuration("collection_period_s") * time.Second,
		},
		Store: store.Config{
			RingCapacity: v.GetInt("sample_ring_capacity"),
			BatchSize:    v.GetInt("sink_batch_size"),
			BatchFlush:   time.Duration(v.GetInt64("sink_batch_flush_ms")) * time.Millisecond,
		},
		Push: push.Config{
			HeartbeatInterval: v.GetDuration("heartbeat_interval_s") * time.Second,
			HeartbeatMisses:   v.GetInt("heartbeat_timeout_misses"),
			SendQueue:         v.GetInt("ws_send_queue"),
			MaxConnections:    v.GetInt("ws_max_connections"),
			MaxPerIP:          v.GetInt("ws_max_per_ip"),
			MaxMessageBytes:   v.GetInt64("ws_max_message_bytes"),
		},
	}

	if len(cfg.MasterKey) == 0 {
		fmt.Fprintln(os.Stderr, "cwatcherd: master_key is missing or unreadable")
		return exitMasterKeyMissing
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "cwatcherd: invalid configuration: %v\n", err)
		return exitConfigInvalid
	}

	// database_driver/database_dsn wire the durable sink's connection;
	// they sit outside the closed tunable key set (§6) because they
	// describe infrastructure, not collection/push behavior.
	driver := libgrm.DriverFromString(v.GetString("database_driver"))
	dsn := v.GetString("database_dsn")

	db, dbErr := openSink(driver, dsn)
	if dbErr != nil {
		fmt.Fprintf(os.Stderr, "cwatcherd: persistent storage unavailable: %v\n", dbErr)
		return exitStorageUnavailable
	}

	rt, err := runtime.New(cfg, store.NewGormSink(db), logFn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cwatcherd: failed to build runtime: %v\n", err)
		return exitConfigInvalid
	}

	loadServers(v, rt, logFn)

	if err := rt.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "cwatcherd: failed to start: %v\n", err)
		return exitConfigInvalid
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if err := rt.HandleUpgrade(w, r); err != nil {
			http.Error(w, err.Error(), http.StatusTooManyRequests)
		}
	})

	srv := &http.Server{Addr: listenAddr, Handler: mux}
	go func() {
		logger.Entry(loglvl.InfoLevel, "cwatcherd listening on %s", listenAddr).Log()
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Entry(loglvl.ErrorLevel, "http server stopped: %v", err).Log()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = rt.Shutdown()

	return exitOK
}

// openSink dials the durable sink's database and verifies connectivity
// before the runtime starts (§6 exit code 3).
func openSink(driver libgrm.Driver, dsn string) (*gormdb.DB, error) {
	dialector := driver.Dialector(dsn)
	if dialector == nil {
		return nil, fmt.Errorf("unsupported or unconfigured database driver")
	}

	db, err := gormdb.Open(dialector, &gormdb.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, err
	}

	return db, nil
}

// loadServers is the REST surface's in-process contract (§6
// CreateServer et al.) collapsed to its startup path: servers are
// decoded from configuration and registered before Start. A live
// adapter would call rt.AddServer/UpdateServer/RemoveServer directly
// instead of re-reading configuration.
func loadServers(v *libspv.Viper, rt runtime.Runtime, logFn liblog.FuncLog) {
	var servers []libmdl.Server
	if err := v.UnmarshalKey("servers", &servers); err != nil {
		return
	}

	for _, srv := range servers {
		if addErr := rt.AddServer(srv); addErr != nil {
			l := logFn()
			if l != nil {
				l.Entry(loglvl.WarnLevel, "failed to register server %s: %v", srv.ID, addErr).Log()
			}
		}
	}
}
