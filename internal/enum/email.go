package enum

type EmailProvider string

const (
	EmailGoogleWorkspace EmailProvider = "google_workspace"
	EmailOutlook         EmailProvider = "outlook"
	EmailGeneric         EmailProvider = "generic"
)

func (t EmailProvider) String() string {
	return string(t)
}

type EmailSecurity string

const (
	EmailSecurityNone     EmailSecurity = "none"
	EmailSecurityTLS      EmailSecurity = "tls"
	EmailSecurityStartTLS EmailSecurity = "startTLS"
)

func (t EmailSecurity) String() string {
	return string(t)
}

type ConnectionStatus string

const (
	ConnectionActive    ConnectionStatus = "active"
	ConnectionNotActive ConnectionStatus = "not_active"
)

func (t ConnectionStatus) String() string {
	return string(t)
}

type AttachmentDisposition string

const (
	DispositionNone       AttachmentDisposition = ""
	DispositionInline     AttachmentDisposition = "inline"
	DispositionAttachment AttachmentDisposition = "attachment"
)

func (t AttachmentDisposition) String() string {
	return string(t)
}
