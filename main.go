package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/openvolt/lifemon/lifepower"
	"github.com/openvolt/lifemon/web"
	"github.com/rkjdid/util"
)

var rootConfig *web.Config

var (
	device   = flag.String("dev", "", "path to serial port, if empty it will be searched automatically")
	address  = flag.Int("address", -1, "bus address of the BMS unit (overrides config)")
	rootPath = flag.String("root", "", "path to lifemon's main directory (defaults to executable path)")
	cfgPath  = flag.String("config", "", "path to config (defaults to <root>/config.toml)")
	verbose  = flag.Bool("v", false, "higher verbosity")
	version  = flag.Bool("version", false, "print version & exit")
)

func init() {
	flag.Parse()

	// print version & exit
	if *version {
		fmt.Printf("lifemon %s\n", Version)
		os.Exit(0)
	}

	if *rootPath == "" {
		exe, err := os.Executable()
		if err != nil {
			log.Fatalf("couldn't get path to executable: %s", err)
		}
		*rootPath = filepath.Dir(exe)
	}
	err := os.MkdirAll(*rootPath, 0755)
	if err != nil {
		log.Fatalf("couldn't mkdir \"%s\": %s", *rootPath, err)
	}

	if *cfgPath == "" {
		*cfgPath = filepath.Join(*rootPath, "config.toml")
	}

	err = util.ReadTomlFile(&rootConfig, *cfgPath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Fatalf("error reading config \"%s\": %s", *cfgPath, err)
		}
		rootConfig = &web.DefaultConfig
		err = util.WriteTomlFile(rootConfig, *cfgPath)
		if err != nil {
			log.Fatalf("error creating config \"%s\": %s", *cfgPath, err)
		}
		log.Printf("created new config file \"%s\"", *cfgPath)
	}

	if *device != "" {
		rootConfig.Device = *device
	}
	if *address >= 0 {
		rootConfig.Address = *address
	}
	if *verbose {
		rootConfig.Web.Verbose = true
	}

	log.Printf("using config file: %s", *cfgPath)
}

// connect opens the configured device, or scans ports when none is set.
func connect(addr byte) (*lifepower.SerialConnection, error) {
	if rootConfig.Device == "" {
		return lifepower.FindSerial(addr, &rootConfig.Serial)
	}
	port, _, err := lifepower.OpenPortName(rootConfig.Device)
	if err != nil {
		return nil, err
	}
	c := lifepower.NewSerial(port, &rootConfig.Serial, rootConfig.Device)
	c.Start()
	return c, nil
}

func main() {
	addr := byte(rootConfig.Address)
	conn, err := connect(addr)
	if err != nil {
		log.Fatalf("error opening serial connection: %s", err)
	}

	// probe the served driver itself so version strings populate,
	// whether the port was configured or discovered
	drv := lifepower.NewDriver(conn, addr)
	if err := drv.TestConnection(); err != nil {
		log.Printf("no response from %s on \"%s\": %s", lifepower.BatteryType, conn.Path(), err)
		os.Exit(1)
	}
	log.Printf("connected to \"%s\" (address 0x%02x)", conn.Path(), addr)

	log.Printf("starting poller (interval: %s)", rootConfig.Poller.Interval)
	poller := lifepower.NewPoller(drv, &rootConfig.Poller)
	poller.Reconnect = func() (lifepower.Transport, error) {
		if c, ok := drv.Conn.(*lifepower.SerialConnection); ok && c != nil {
			c.Close()
		}
		return connect(addr)
	}
	poller.Start()

	log.Printf("starting webserver on http://%s ...", rootConfig.Web.ListenAddr)
	go web.StartServer(Version, poller, rootConfig, *cfgPath)

	// small delay to allow for panic in StartServer
	<-time.After(time.Millisecond * 500)
	log.Println("Press <Ctrl-C> to quit")

	trap := make(chan os.Signal, 1)
	signal.Notify(trap, os.Kill, os.Interrupt)
	<-trap
	fmt.Println()
	log.Println("quit received...")

	cleanExit := make(chan struct{})
	go func() {
		poller.Stop()
		if c, ok := drv.Conn.(*lifepower.SerialConnection); ok && c != nil {
			c.Close()
		}
		close(cleanExit)
	}()
	select {
	case <-time.After(time.Second * 10):
		log.Panicln("no clean exit after 10sec")
	case <-cleanExit:
	}
}
