// Command gamespacectl talks to the control API of a running gamespace.
//
//	gamespacectl start <app>
//	gamespacectl stop
//	gamespacectl status
package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/chaldeaprjkt/gamespace/pkg/api"
	flag "github.com/spf13/pflag"
)

func main() {
	address := flag.StringP("address", "a", "127.0.0.1:9310", "gamespace control API address")
	timeout := flag.Duration("timeout", 5*time.Second, "request timeout")
	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [flags] start <app>|stop|status\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	c := client{base: "http://" + *address + api.Version, http: &http.Client{Timeout: *timeout}}
	if err := c.run(flag.Args(), os.Stdout); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type client struct {
	base string
	http *http.Client
}

var errUsage = fmt.Errorf("usage: start <app>|stop|status")

func (c client) run(args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "start":
		if len(args) < 2 {
			return errUsage
		}
		body, err := api.Wrap(api.StartRequest{App: args[1]})
		if err != nil {
			return err
		}
		return c.command(api.StartPath, body, out)
	case "stop":
		return c.command(api.StopPath, nil, out)
	case "status":
		res, err := c.http.Get(c.base + api.SessionPath)
		if err != nil {
			return err
		}
		st, err := api.UnwrapChecked[api.StatusResponse](read(res))
		if err != nil {
			return err
		}
		if !st.Running {
			_, err = fmt.Fprintln(out, "idle")
			return err
		}
		_, err = fmt.Fprintf(out, "%v %v [%v] sid=%v restarts=%v\n", st.App, st.State, st.Connection, st.SessionId, st.Restarts)
		return err
	}
	return errUsage
}

func (c client) command(path string, body []byte, out io.Writer) error {
	res, err := c.http.Post(c.base+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	code := res.StatusCode
	r, err := api.UnwrapChecked[api.Response](read(res))
	if err != nil {
		return fmt.Errorf("bad reply (%v): %w", code, err)
	}
	switch code {
	case http.StatusAccepted:
		_, err = fmt.Fprintln(out, "accepted")
	case http.StatusConflict:
		_, err = fmt.Fprintln(out, "nothing to do")
	default:
		err = fmt.Errorf("%v: %v", code, r.Error)
	}
	return err
}

func read(res *http.Response) ([]byte, error) {
	defer func() { _ = res.Body.Close() }()
	return io.ReadAll(res.Body)
}
