package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/gorpc"

	"github.com/janelia-flyem/omerotools/omero"
	"github.com/janelia-flyem/omerotools/scripts"
)

// rpcDo is the dispatcher function that executes a command line.
const rpcDo = "Do"

// RPCTimeout bounds a remote command, which may run a long script.
const RPCTimeout = 12 * time.Hour

const rpcHelp = `
Commands executed by the omerotools service:

    help                    This message
    about                   Describe the service
    scripts                 List compiled scripts
    help <script>           Help for a script
    reports [<script>]      List stored reports, newest first
    report <id>             Show a stored report
    delete-report <id>      Delete a stored report
    shutdown                Stop the service
    <script> [key=value...] Run a script
`

// ShutdownDelay lets the reply to a shutdown command reach the client before
// the RPC server stops.
var ShutdownDelay = 500 * time.Millisecond

// Request is a command line sent to the service.  User and Password, if
// given, replace the service account for the run.
type Request struct {
	Command  []string
	User     string
	Password string
}

// Response is the text output of a command.
type Response struct {
	Text   string
	Failed bool
}

func init() {
	gorpc.RegisterType(&Request{})
	gorpc.RegisterType(&Response{})
}

// dispatcher returns the RPC functions of the service.
func (s *Service) dispatcher(ctx context.Context) *gorpc.Dispatcher {
	d := gorpc.NewDispatcher()
	d.AddFunc(rpcDo, func(req *Request) (*Response, error) {
		return s.DoCommand(ctx, req), nil
	})
	return d
}

// DoCommand executes a command line and returns its output.
func (s *Service) DoCommand(ctx context.Context, req *Request) *Response {
	cmd := omero.Command(req.Command)
	switch cmd.Name() {
	case "", "help":
		var name string
		cmd.CommandArgs(&name)
		if name == "" {
			return &Response{Text: rpcHelp + scripts.Chart()}
		}
		script, err := scripts.Get(name)
		if err != nil {
			return &Response{Text: err.Error(), Failed: true}
		}
		return &Response{Text: script.Help()}

	case "about":
		return &Response{Text: aboutText(s.About())}

	case "scripts":
		return &Response{Text: scripts.Chart()}

	case "reports":
		var name string
		cmd.CommandArgs(&name)
		reports, err := s.reports.List(name)
		if err != nil {
			return &Response{Text: err.Error(), Failed: true}
		}
		var sb strings.Builder
		for _, r := range reports {
			succeeded, skipped, failed := r.Counts()
			fmt.Fprintf(&sb, "%s  %s  %-22s %d/%d/%d  %s\n", r.ID, r.Started.Format(time.RFC3339), r.Script,
				succeeded, skipped, failed, r.Message)
		}
		if sb.Len() == 0 {
			return &Response{Text: "No stored reports\n"}
		}
		return &Response{Text: sb.String()}

	case "report", "delete-report":
		var id string
		cmd.CommandArgs(&id)
		if id == "" {
			return &Response{Text: fmt.Sprintf("%s requires a report id", cmd.Name()), Failed: true}
		}
		r, err := s.reports.Get(id)
		if err != nil {
			return &Response{Text: err.Error(), Failed: true}
		}
		if cmd.Name() == "report" {
			return &Response{Text: r.String()}
		}
		if err := s.reports.Delete(id); err != nil {
			return &Response{Text: err.Error(), Failed: true}
		}
		return &Response{Text: fmt.Sprintf("Deleted report %s of %s\n", id, r.Script)}

	case "shutdown":
		omero.Infof("Shutdown requested through RPC\n")
		time.AfterFunc(ShutdownDelay, s.Shutdown)
		return &Response{Text: "Shutting down omerotools service\n"}

	default:
		report, err := s.RunCommand(ctx, cmd, req.User, req.Password)
		if report == nil {
			return &Response{Text: err.Error(), Failed: true}
		}
		text := report.String()
		if err != nil {
			text += err.Error() + "\n"
		}
		return &Response{Text: text, Failed: err != nil || report.Failed()}
	}
}

// Client sends commands to a running service.
type Client struct {
	c  *gorpc.Client
	dc *gorpc.DispatcherClient
}

// NewClient returns a client of the RPC service at the address.
func NewClient(addr string) *Client {
	gorpc.SetErrorLogger(omero.Errorf)
	c := gorpc.NewTCPClient(addr)
	c.RequestTimeout = RPCTimeout
	c.Start()
	d := gorpc.NewDispatcher()
	d.AddFunc(rpcDo, func(req *Request) (*Response, error) { return nil, nil })
	return &Client{c: c, dc: d.NewFuncClient(c)}
}

// Do sends a command line and returns the service's response.
func (c *Client) Do(cmd omero.Command, user, password string) (*Response, error) {
	resp, err := c.dc.Call(rpcDo, &Request{Command: cmd, User: user, Password: password})
	if err != nil {
		return nil, err
	}
	reply, ok := resp.(*Response)
	if !ok {
		return nil, fmt.Errorf("remote service returned %T instead of a response", resp)
	}
	return reply, nil
}

// Close stops the client.
func (c *Client) Close() {
	c.c.Stop()
}
