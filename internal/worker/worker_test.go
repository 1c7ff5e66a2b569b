package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agora-project/agorad/internal/aid"
	"github.com/agora-project/agorad/internal/handler"
	"github.com/agora-project/agorad/internal/launcher"
	"github.com/agora-project/agorad/internal/message"
	"github.com/agora-project/agorad/internal/model"
	"github.com/agora-project/agorad/internal/queue"
	"github.com/agora-project/agorad/internal/registry"
	"github.com/agora-project/agorad/internal/storage/filetree"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func testPool(t *testing.T) (*Pool, *queue.Queue, *registry.Registry) {
	t.Helper()
	st, err := filetree.New(t.TempDir())
	require.NoError(t, err)
	// A fake "doe" plugin that writes both values of the welcome's
	// "threads" knob to output.json.
	pluginRoot := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(pluginRoot, "doe"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pluginRoot, "doe", "plugin.sh"), []byte("#!/bin/sh\n"+
		"cat > output.json <<'EOF'\n"+
		"[{\"threads\":\"1\"},{\"threads\":\"2\"}]\n"+
		"EOF\n"), 0o755))
	lnch := launcher.New(pluginRoot, t.TempDir())
	reg := registry.New(st, lnch, nil)
	inbox := queue.New(16)
	return New(inbox, reg, nil, 3), inbox, reg
}

func TestWelcomeBuildsDoE(t *testing.T) {
	p, inbox, reg := testPool(t)
	ctx := context.Background()
	p.Start(ctx)

	id := aid.AID{Application: "app", Version: "1", Block: "main"}
	welcome := `{"name":"app","version":"1","blocks":[{"block_name":"main","knobs":[{"name":"threads","type":"int","values":["1","2"]}],"metrics":[{"name":"latency","type":"double"}],"agora":{"doe_plugin":"doe","required_observations_per_configuration":1}}]}`
	require.NoError(t, inbox.Enqueue(message.Message{
		Topic:   message.Topic(id.String(), "client-1", message.KindWelcome),
		Payload: welcome,
	}))

	require.Eventually(t, func() bool {
		h, ok := reg.Get(id)
		return ok && h.State().Has(handler.WithInformation|handler.WithDoE)
	}, time.Second, 10*time.Millisecond)

	inbox.Terminate()
	p.Wait()
}

func TestShutdownSystemTopicTerminatesPool(t *testing.T) {
	defer goleak.VerifyNone(t)
	p, inbox, _ := testPool(t)
	ctx := context.Background()
	p.Start(ctx)

	require.NoError(t, inbox.Enqueue(message.Message{Topic: message.SystemTopic, Payload: "shutdown"}))
	p.Wait()
}

func TestByeClientIsRoutedByAID(t *testing.T) {
	p, inbox, reg := testPool(t)
	ctx := context.Background()
	p.Start(ctx)

	id := aid.AID{Application: "app", Version: "1", Block: "main"}
	h := reg.GetOrCreate(id)
	require.NoError(t, h.WelcomeClient(ctx, "client-1", &model.Description{
		Knobs:   []model.Knob{{Name: "threads", Values: []string{"1"}}},
		Metrics: []model.Metric{{Name: "latency"}},
	}))

	require.NoError(t, inbox.Enqueue(message.Message{
		Topic: message.Topic(id.String(), "client-1", message.KindKia),
	}))

	require.Eventually(t, func() bool {
		return h.ActiveClients() == 0
	}, time.Second, 10*time.Millisecond)

	inbox.Terminate()
	p.Wait()
}
