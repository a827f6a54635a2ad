// Package plateroaster wires the plate roasting pipeline end to end: photo
// intake or camera capture, compression, the vision model roast, the share
// composite and the share hand-off.
//
// Basic usage:
//
//	cfg := config.Default()
//	cfg.Roast.Backend = config.BackendStatic
//
//	app, err := plateroaster.New(cfg, plateroaster.Options{
//		Share: share.Local("."),
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	if _, err := app.SelectFile(ctx, "dinner.jpg"); err != nil {
//		log.Fatal(err)
//	}
//	verdict, err := app.Roast(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("%.1f/10 %s\n", verdict.Rating, verdict.Roast)
//
//	res, err := app.Share(ctx)
//
// The session moves through idle, ready, processing and complete (or error);
// see pkg/session for the allowed transitions.
package plateroaster

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/menta2k/plate-roaster/internal/config"
	"github.com/menta2k/plate-roaster/internal/log"
	"github.com/menta2k/plate-roaster/pkg/capture"
	"github.com/menta2k/plate-roaster/pkg/client"
	"github.com/menta2k/plate-roaster/pkg/composite"
	"github.com/menta2k/plate-roaster/pkg/handle"
	"github.com/menta2k/plate-roaster/pkg/intake"
	"github.com/menta2k/plate-roaster/pkg/loading"
	"github.com/menta2k/plate-roaster/pkg/ollama"
	"github.com/menta2k/plate-roaster/pkg/openai"
	"github.com/menta2k/plate-roaster/pkg/processing"
	"github.com/menta2k/plate-roaster/pkg/roast"
	"github.com/menta2k/plate-roaster/pkg/server"
	"github.com/menta2k/plate-roaster/pkg/session"
	"github.com/menta2k/plate-roaster/pkg/share"
	"github.com/menta2k/plate-roaster/pkg/types"
)

// Version of the plate roaster
const Version = "1.0.0"

// ErrMissingAPIKey is returned when the openai backend has no key configured
var ErrMissingAPIKey = errors.New("server configuration error: API key not set")

// Options carries the platform capabilities. Zero values mean the capability
// is missing: no camera, no share targets.
type Options struct {
	Devices capture.MediaDevices
	Share   share.Capabilities
	// Roaster overrides the backend selected in the configuration.
	Roaster roast.Roaster
}

// App is one roasting session together with everything it needs
type App struct {
	config    *config.Config
	handles   *handle.Store
	processor *processing.Processor
	intake    *intake.Intake
	session   *session.Session
	roaster   roast.Roaster
	renderer  *composite.Renderer
	share     *share.Dispatcher
	devices   capture.MediaDevices
}

// New creates an App from a validated configuration
func New(cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	roaster := opts.Roaster
	if roaster == nil {
		var err error
		roaster, err = NewRoaster(cfg)
		if err != nil {
			return nil, err
		}
	}

	handles := handle.NewStore()
	processor := processing.NewProcessorWithConfig(ProcessingConfig(cfg))

	renderer, err := composite.NewRenderer(CompositeConfig(cfg), composite.NewAssetLoader(handles, processor), processor)
	if err != nil {
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}

	return &App{
		config:    cfg,
		handles:   handles,
		processor: processor,
		intake:    intake.New(processor, handles),
		session:   session.New(handles),
		roaster:   roaster,
		renderer:  renderer,
		share:     share.NewDispatcher(opts.Share, ShareConfig(cfg)),
		devices:   opts.Devices,
	}, nil
}

// NewRoastService builds the model-backed roast service for the openai,
// ollama and static backends.
func NewRoastService(cfg *config.Config) (*roast.Service, error) {
	var (
		vc  client.VisionClient
		err error
	)

	switch cfg.Roast.Backend {
	case config.BackendOpenAI:
		key := cfg.APIKey()
		if key == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingAPIKey, cfg.Roast.APIKeyEnv)
		}
		vc, err = openai.NewClient(cfg.Roast.URL, key)
	case config.BackendOllama:
		vc, err = ollama.NewClient(cfg.Roast.URL)
	case config.BackendStatic:
		vc = client.NewStatic()
	default:
		return nil, fmt.Errorf("roast backend %q has no local model", cfg.Roast.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", cfg.Roast.Backend, err)
	}

	return roast.NewService(vc, RoastConfig(cfg)), nil
}

// NewRoaster returns the roaster for the configured backend
func NewRoaster(cfg *config.Config) (roast.Roaster, error) {
	if cfg.Roast.Backend == config.BackendRemote {
		return roast.NewRemoteClient(cfg.Roast.URL, cfg.Roast.RatingMax), nil
	}
	return NewRoastService(cfg)
}

// ProcessingConfig maps the compression section
func ProcessingConfig(cfg *config.Config) processing.Config {
	return processing.Config{
		MaxDimension: cfg.Compression.MaxDimension,
		Quality:      cfg.Compression.Quality,
	}
}

// RoastConfig maps the roast section
func RoastConfig(cfg *config.Config) roast.Config {
	rc := roast.DefaultConfig()
	if cfg.Roast.Model != "" {
		rc.Model = cfg.Roast.Model
	}
	rc.RatingMax = cfg.Roast.RatingMax
	rc.Timeout = time.Duration(cfg.Roast.TimeoutSeconds) * time.Second
	return rc
}

// CaptureConfig maps the capture section
func CaptureConfig(cfg *config.Config) capture.Config {
	return capture.Config{
		GuideDiameter:     cfg.Capture.GuideDiameter,
		Quality:           cfg.Capture.Quality,
		ErrorDismissDelay: time.Duration(cfg.Capture.ErrorDismissDelayMs) * time.Millisecond,
		Constraints: capture.Constraints{
			FacingMode:  cfg.Capture.FacingMode,
			IdealWidth:  cfg.Capture.IdealWidth,
			IdealHeight: cfg.Capture.IdealHeight,
		},
	}
}

// CompositeConfig maps the composite section. Background keys that are not
// a known severity are ignored.
func CompositeConfig(cfg *config.Config) composite.Config {
	cc := composite.DefaultConfig()
	cc.Viewport = composite.Viewport{
		Width:   cfg.Composite.Width,
		Height:  cfg.Composite.Height,
		Density: cfg.Composite.Density,
	}
	cc.Quality = cfg.Composite.Quality
	cc.RatingScale = cfg.Roast.RatingScale
	cc.Logo = cfg.Composite.Logo
	cc.Watermark = cfg.Composite.Watermark

	for k, ref := range cfg.Composite.Backgrounds {
		if sev, ok := types.ParseSeverity(k); ok {
			cc.Backgrounds[sev] = ref
		} else {
			log.Printf("[composite] Ignoring background for unknown severity %q", k)
		}
	}
	return cc
}

// ShareConfig maps the share section
func ShareConfig(cfg *config.Config) share.Config {
	return share.Config{
		DeepLink:      cfg.Share.DeepLink,
		WebFallback:   cfg.Share.WebFallback,
		FallbackDelay: time.Duration(cfg.Share.FallbackDelayMs) * time.Millisecond,
	}
}

// ServerConfig maps the server section
func ServerConfig(cfg *config.Config) server.Config {
	return server.Config{
		Addr:              cfg.Server.Addr,
		RequestsPerMinute: cfg.Server.RequestsPerMinute,
		Burst:             cfg.Server.Burst,
		MaxBodyBytes:      cfg.Server.MaxBodyBytes,
	}
}

// Session exposes the session state machine
func (a *App) Session() *session.Session {
	return a.session
}

// Handles exposes the display handle store
func (a *App) Handles() *handle.Store {
	return a.handles
}

// SelectFile validates a photo on disk and makes it the current plate
func (a *App) SelectFile(ctx context.Context, path string) (types.Photo, error) {
	photo, err := a.intake.FromFile(ctx, path)
	if err != nil {
		return types.Photo{}, err
	}
	if err := a.SelectPhoto(photo); err != nil {
		return types.Photo{}, err
	}
	return photo, nil
}

// SelectPhoto makes an already validated photo the current plate. The
// photo's handle is revoked when the session refuses it.
func (a *App) SelectPhoto(photo types.Photo) error {
	if err := a.session.SelectPlate(photo); err != nil {
		if photo.Handle != "" {
			a.handles.Revoke(photo.Handle)
		}
		return err
	}
	return nil
}

// NewCamera creates a capture modal whose stills become the current plate.
// Captures are refused while a roast is in flight, before the camera stops.
// The given Accept and OnCapture run after the session's own checks.
func (a *App) NewCamera(callbacks capture.Callbacks) *capture.Modal {
	accept, onCapture := callbacks.Accept, callbacks.OnCapture
	callbacks.Accept = func() error {
		if a.session.Phase() == session.PhaseProcessing {
			return fmt.Errorf("%w: cannot capture while processing", session.ErrInvalidTransition)
		}
		if accept != nil {
			return accept()
		}
		return nil
	}
	callbacks.OnCapture = func(photo types.Photo) error {
		if err := a.session.SelectPlate(photo); err != nil {
			log.Printf("[capture] Captured photo rejected: %v", err)
			return err
		}
		// The session owns the handle from here, so a hook failure must not
		// make the modal revoke it.
		if onCapture != nil {
			if err := onCapture(photo); err != nil {
				log.Printf("[capture] OnCapture hook failed: %v", err)
			}
		}
		return nil
	}
	return capture.NewModal(a.devices, a.handles, CaptureConfig(a.config), callbacks)
}

// Roast compresses the current plate and asks the roaster for a verdict.
// The loading state lasts at least the configured minimum. On failure the
// session keeps the plate and records a user-visible message.
func (a *App) Roast(ctx context.Context) (types.Roast, error) {
	ticket, err := a.session.StartProcessing()
	if err != nil {
		return types.Roast{}, err
	}
	plate := ticket.Plate

	minimum := time.Duration(a.config.Roast.MinLoadingMs) * time.Millisecond
	verdict, err := loading.AtLeast(ctx, minimum, func(ctx context.Context) (types.Roast, error) {
		compressed, err := a.processor.Compress(ctx, plate.Data, plate.Name)
		if err != nil {
			return types.Roast{}, fmt.Errorf("failed to compress plate: %w", err)
		}
		log.Printf("[roast] Compressed %s to %dx%d, %d bytes", plate.Name, compressed.Width, compressed.Height, len(compressed.Data))
		return a.roaster.DescribeAndRoast(ctx, compressed.Data, compressed.MimeType)
	})
	if err != nil {
		log.Printf("[roast] Roast failed: %v", err)
		msg := roast.FailureMessage
		if errors.Is(err, processing.ErrDecode) || errors.Is(err, processing.ErrUnsupportedFormat) {
			msg = intake.UserMessage(err)
		}
		if ferr := a.session.Fail(ticket, msg); ferr != nil {
			log.Printf("[session] %v", ferr)
		}
		return types.Roast{}, err
	}

	// A reset or new plate during the request makes this verdict stale
	if err := a.session.Complete(ticket, verdict); err != nil {
		return types.Roast{}, err
	}
	return verdict, nil
}

// RenderShareImage draws the share composite for the current plate and
// roast. Without a roast the fallback verdict is drawn.
func (a *App) RenderShareImage(ctx context.Context, includeWatermark bool) ([]byte, error) {
	state := a.session.Snapshot()
	if state.Plate == nil {
		return nil, session.ErrNoPlate
	}

	verdict := roast.Fallback()
	if state.Roast != nil {
		verdict = *state.Roast
	}

	ref := state.Plate.Handle
	if ref == "" {
		ref = a.handles.Create(state.Plate.Data, state.Plate.MimeType)
		defer a.handles.Revoke(ref)
	}

	return a.renderer.Render(ctx, composite.Spec{
		Severity:         verdict.Severity,
		Rating:           verdict.Rating,
		Roast:            verdict.Roast,
		Plate:            ref,
		IncludeWatermark: includeWatermark,
	})
}

// Share renders the watermarked composite and hands it off
func (a *App) Share(ctx context.Context) (share.Result, error) {
	data, err := a.RenderShareImage(ctx, true)
	if err != nil {
		return share.Result{}, err
	}
	res, err := a.share.ShareImage(ctx, share.File{
		Name:     composite.ShareFileName,
		MimeType: processing.MimeJPEG,
		Data:     data,
	})
	if err != nil {
		return share.Result{}, err
	}
	log.Printf("[share] Share image %s %s", res.Outcome, res.Location)
	return res, nil
}

// ShareText shares the roast line itself
func (a *App) ShareText(ctx context.Context) (share.Result, error) {
	state := a.session.Snapshot()
	if state.Roast == nil {
		return share.Result{}, fmt.Errorf("%w: nothing to share yet", session.ErrInvalidTransition)
	}
	return a.share.ShareText(ctx, state.Roast.Roast)
}

// Reset discards the current plate and roast
func (a *App) Reset() {
	a.session.Reset()
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
