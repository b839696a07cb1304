package consts

const (
	MimePrefixImage = "image"
	MimePrefixAudio = "audio"
	MimePDF         = "application/pdf"
)

// 聊天消息类型
const (
	ContentTypeText  = "text"
	ContentTypeImage = "image"
	ContentTypeAudio = "audio"
	ContentTypePDF   = "pdf"
)

// 身份类型
const (
	KindUser   = "User"
	KindExpert = "Expert"
)

// 会话预览文案
const (
	PreviewImage = "📷 Image"
	PreviewAudio = "🎤 Audio Message"
	PreviewPDF   = "📄 Document"
)

// gin Context 中的身份键
const (
	CtxIdentityID   = "identity_id"
	CtxIdentityKind = "identity_kind"
)
