package domain

// 系统设置键
const (
	SettingCommunityName          = "community_name"
	SettingDefaultPageSize        = "default_page_size"
	SettingShowDefaultCredentials = "show_default_credentials"
)

// 系统设置缺省值
const (
	DefaultCommunityName = "阳光社区"
	DefaultPageSize      = 20
)
