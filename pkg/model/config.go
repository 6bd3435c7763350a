package model

// APIServer holds the api server configuration
type APIServer struct {
	Addr string `yaml:"addr" validate:"required"`
	TLS  TLS    `yaml:"tls" validate:"omitempty"`
}

// TLS holds the tls configuration
type TLS struct {
	Enabled      bool   `yaml:"enabled"`
	CertFilePath string `yaml:"cert_file_path"`
	KeyFilePath  string `yaml:"key_file_path"`
}

// KeyValue holds the key/value store configuration
type KeyValue struct {
	Addr     string `yaml:"addr" validate:"required"`
	DB       int    `yaml:"db"`
	Password string `yaml:"password"`
}

// Log holds the log configuration
type Log struct {
	Level      string `yaml:"level"`
	FolderPath string `yaml:"folder_path"`
}

// OTEL holds the opentelemetry configuration
type OTEL struct {
	Addr    string `yaml:"addr" validate:"required"`
	Type    string `yaml:"type" default:"jaeger"`
	Timeout int64  `yaml:"timeout" default:"10"`
}

// Common holds the common configuration
type Common struct {
	Production bool     `yaml:"production"`
	Log        Log      `yaml:"log"`
	Tracing    OTEL     `yaml:"tracing" validate:"required"`
	KeyValue   KeyValue `yaml:"key_value" validate:"omitempty"`
}

// Lifetimes holds the token lifetimes, in seconds
type Lifetimes struct {
	AccessToken       int64 `yaml:"access_token" default:"3600"`
	AuthorizationCode int64 `yaml:"authorization_code" default:"300"`
	RefreshToken      int64 `yaml:"refresh_token" default:"1209600"`
	IdentityToken     int64 `yaml:"identity_token" default:"1200"`
}

// Client holds one registered relying party
type Client struct {
	Secret       string   `yaml:"secret"`
	RedirectURIs []string `yaml:"redirect_uris" validate:"required"`
	Scopes       []string `yaml:"scopes" validate:"required"`
	Public       bool     `yaml:"public"`
}

// User holds one resource owner for the password grant and the sign-in form
type User struct {
	Password            string `yaml:"password" validate:"required"`
	Name                string `yaml:"name"`
	GivenName           string `yaml:"given_name"`
	FamilyName          string `yaml:"family_name"`
	Birthdate           string `yaml:"birthdate"`
	Email               string `yaml:"email"`
	EmailVerified       bool   `yaml:"email_verified"`
	PhoneNumber         string `yaml:"phone_number"`
	PhoneNumberVerified bool   `yaml:"phone_number_verified"`
}

// OP holds the openid provider configuration
type OP struct {
	APIServer APIServer `yaml:"api_server" validate:"required"`

	// Issuer is the absolute issuer URI published in discovery and stamped
	// into every identity token.
	Issuer string `yaml:"issuer" validate:"required"`

	SigningKeyPath   string `yaml:"signing_key_path" validate:"required"`
	ProtectionSecret string `yaml:"protection_secret" validate:"required"`

	AllowInsecureHTTP           bool `yaml:"allow_insecure_http"`
	UseSlidingExpiration        bool `yaml:"use_sliding_expiration"`
	ApplicationCanDisplayErrors bool `yaml:"application_can_display_errors"`

	Lifetimes Lifetimes `yaml:"lifetimes"`

	SessionSecret string `yaml:"session_secret" validate:"required"`

	Clients map[string]*Client `yaml:"clients" validate:"required"`
	Users   map[string]*User   `yaml:"users"`
}

// Cfg is the main configuration structure for the service
type Cfg struct {
	Common Common `yaml:"common"`
	OP     OP     `yaml:"op" validate:"required"`
}
