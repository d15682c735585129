package app

// Application wires the pieces the TUI needs: configuration, the remote
// store client (real or mock), the locally owned conversation state, and a
// file logger. Created once at startup, torn down never.
type Application struct {
	Config Config
	Client RemoteStore
	Store  *ConversationStore
	Logger *Logger
	Mock   bool
}

func NewApplication(cfg Config, mock bool) *Application {
	logger := NewFileLogger(cfg.StateDir)
	pointer := NewPointer(cfg.StateDir)

	var client RemoteStore
	if mock {
		client = NewMockStore()
	} else {
		client = NewClient(cfg.Endpoint, cfg.APIKey, RequestTimeout(cfg))
	}

	return &Application{
		Config: cfg,
		Client: client,
		Store:  NewConversationStore(pointer, logger),
		Logger: logger,
		Mock:   mock,
	}
}
