package mime

import "github.com/emersion/go-imap"

// orderReturnStructure is a typical shop reply:
//
//	mixed
//	├── alternative (1)
//	│   ├── text/plain (1.1)
//	│   └── text/html (1.2)
//	├── application/pdf attachment (2)
//	└── related (3)
//	    ├── text/html (3.1)
//	    └── image/png inline (3.2)
func orderReturnStructure() *imap.BodyStructure {
	return &imap.BodyStructure{
		MIMEType:    "multipart",
		MIMESubType: "mixed",
		Parts: []*imap.BodyStructure{
			{
				MIMEType:    "multipart",
				MIMESubType: "alternative",
				Parts: []*imap.BodyStructure{
					{MIMEType: "text", MIMESubType: "plain", Params: map[string]string{"charset": "utf-8"}, Encoding: "7bit", Size: 120},
					{MIMEType: "text", MIMESubType: "html", Params: map[string]string{"charset": "utf-8"}, Encoding: "base64", Size: 400},
				},
			},
			{
				MIMEType:          "application",
				MIMESubType:       "pdf",
				Encoding:          "base64",
				Disposition:       "attachment",
				DispositionParams: map[string]string{"filename": "invoice-8891.pdf"},
				Size:              20480,
			},
			{
				MIMEType:    "multipart",
				MIMESubType: "related",
				Parts: []*imap.BodyStructure{
					{MIMEType: "text", MIMESubType: "html", Encoding: "quoted-printable", Size: 300},
					{
						MIMEType:    "IMAGE",
						MIMESubType: "PNG",
						Params:      map[string]string{"NAME": "logo.png"},
						Id:          "<logo@shop>",
						Encoding:    "BASE64",
						Disposition: "INLINE",
						Size:        1024,
					},
				},
			},
		},
	}
}
