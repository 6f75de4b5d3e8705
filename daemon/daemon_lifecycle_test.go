package daemon_test

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/arlonet/httpd/action"
	"github.com/arlonet/httpd/daemon"
	"github.com/arlonet/httpd/response"
	"github.com/arlonet/httpd/stream"
)

func echoHandler(c *stream.Connection, act *action.Action) {
	resp := response.New(200)
	resp.Headers.Add("Content-Type", "text/plain")
	body := []byte(c.Request().MethodString + " " + c.Request().URL)
	resp.SetBuffer(body, response.OwnershipMustCopy)
	_ = act.SetResponse(resp)
}

// readLine reads one CRLF-terminated line from r, trimming the terminator.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	return strings.TrimRight(line, "\r\n"), err
}

var _ = Describe("Daemon lifecycle", func() {
	var d *daemon.Daemon

	AfterEach(func() {
		if d != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = d.Shutdown(ctx)
			d = nil
		}
	})

	Context("ModeWorkerInternal", func() {
		It("serves a request over a real TCP connection and shuts down cleanly", func() {
			c, st := daemon.New(
				daemon.WithAddr("tcp", "127.0.0.1:0"),
				daemon.WithMode(daemon.ModeWorkerInternal),
				daemon.WithHandler(echoHandler),
			)
			Expect(st.Ok()).To(BeTrue())
			d = c

			Expect(d.Start().Ok()).To(BeTrue())
			Expect(d.Addr()).ToNot(BeNil())

			conn, err := net.DialTimeout("tcp", d.Addr().String(), time.Second)
			Expect(err).ToNot(HaveOccurred())
			defer conn.Close()

			req := "GET /hello HTTP/1.1\r\nHost: example.test\r\nConnection: close\r\n\r\n"
			_, err = fmt.Fprint(conn, req)
			Expect(err).ToNot(HaveOccurred())

			conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			r := bufio.NewReader(conn)
			statusLine, err := readLine(r)
			Expect(err).ToNot(HaveOccurred())
			Expect(statusLine).To(HavePrefix("HTTP/1.1 200"))
		})
	})

	Context("ModeExternalEvents", func() {
		It("rejects AddConn-family calls made against the wrong mode", func() {
			c, st := daemon.New(
				daemon.WithMode(daemon.ModeWorkerInternal),
				daemon.WithHandler(echoHandler),
			)
			Expect(st.Ok()).To(BeTrue())
			d = c

			code := d.ProcessEvents(0)
			Expect(code.Ok()).To(BeFalse())
		})

		It("drives its single worker purely from embedder calls", func() {
			c, st := daemon.New(
				daemon.WithMode(daemon.ModeExternalEvents),
				daemon.WithHandler(echoHandler),
			)
			Expect(st.Ok()).To(BeTrue())
			d = c

			Expect(d.Start().Ok()).To(BeTrue())
			Expect(d.Addr()).To(BeNil())
			Expect(d.GetTimeout()).To(BeNumerically(">", 0))

			// No fd registered yet: a tick should be a no-op, not an error.
			Expect(d.ProcessEvents(0).Ok()).To(BeTrue())
		})
	})
})
