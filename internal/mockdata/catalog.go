// Package mockdata holds the fixed catalogs and the stand-in audio sample
// served when no usable ElevenLabs credential is available.
package mockdata

import (
	"strings"

	"github.com/nupi-ai/tts-studio-elevenlabs/internal/elevenlabs"
)

// MockVoicePrefix marks locale voices that exist only in the mock catalog.
const MockVoicePrefix = "vi_vn_"

var voices = []elevenlabs.Voice{
	{VoiceID: "21m00Tcm4TlvDq8ikWAM", Name: "Rachel", Labels: labels("female", "american", "Truyền cảm")},
	{VoiceID: "pNInz6obpgDQGcFmaJgB", Name: "Adam", Labels: labels("male", "american", "Trầm ấm")},
	{VoiceID: "EXAVITQu4vr4xnSDxMaL", Name: "Bella", Labels: labels("female", "american", "Trẻ trung")},
	{VoiceID: "ErXw7Sg8S8nC9S1f9S8n", Name: "Antoni", Labels: labels("male", "american", "Chững chạc")},
	{VoiceID: "VR6AewyH7oxUXjzD49uU", Name: "Arnold", Labels: labels("male", "american", "Mạnh mẽ")},
	{VoiceID: "TxGEqnHW47M3Ko8QbtCc", Name: "Josh", Labels: labels("male", "american", "Năng động")},
	{VoiceID: "MF3mGyEYCl7XYW7ICZ8u", Name: "Elli", Labels: labels("female", "american", "Ngọt ngào")},
	{VoiceID: "AZnzlk1XhkDUD0M8zjUM", Name: "Domi", Labels: labels("female", "american", "Chuyên nghiệp")},
	{VoiceID: "ThT52p0601", Name: "Dorothy", Labels: labels("female", "american", "Kể chuyện")},
	{VoiceID: "Lcf7m35p0601", Name: "Emily", Labels: labels("female", "american", "Nhẹ nhàng")},
	{VoiceID: "GBv7mTt0atIp3Y8iH6PL", Name: "Thomas", Labels: labels("male", "american", "Tin tức")},
	{VoiceID: "ZQe5f7m35p0601", Name: "James", Labels: labels("male", "american", "Thuyết minh")},
	{VoiceID: "onw5f7m35p0601", Name: "Daniel", Labels: labels("male", "american", "Quảng cáo")},
	{VoiceID: "pMs7m35p0601", Name: "Serena", Labels: labels("female", "american", "Êm ái")},
	{VoiceID: "z9f7m35p0601", Name: "Glinda", Labels: labels("female", "american", "Phù thủy")},
	{VoiceID: "yoZf7m35p0601", Name: "Sam", Labels: labels("male", "american", "Thân thiện")},
	{VoiceID: "IKne3meS2pL762p0601", Name: "Charlie", Labels: labels("male", "american", "Tinh nghịch")},
	{VoiceID: "jBf7m35p0601", Name: "Gigi", Labels: labels("female", "american", "Hoạt hình")},
	{VoiceID: "jsf7m35p0601", Name: "Freya", Labels: labels("female", "american", "Bí ẩn")},
	{VoiceID: "oP7m35p0601", Name: "Grace", Labels: labels("female", "american", "Sang trọng")},
	{VoiceID: "piTKp0601", Name: "Nicole", Labels: labels("female", "american", "Thì thầm")},
	{VoiceID: "t0f7m35p0601", Name: "Jessie", Labels: labels("female", "american", "Cá tính")},
	{VoiceID: "wVf7m35p0601", Name: "Ryan", Labels: labels("male", "american", "Thể thao")},
	{VoiceID: "zE5f7m35p0601", Name: "Giovanni", Labels: labels("male", "american", "Ngoại quốc")},
	{VoiceID: "zrHi7m35p0601", Name: "Mimi", Labels: labels("female", "american", "Dễ thương")},
	{VoiceID: "N2lVSf6p0601", Name: "Callum", Labels: labels("male", "american", "Khàn đặc")},
	{VoiceID: "ODq5zWAf6p0601", Name: "Patrick", Labels: labels("male", "american", "Hùng hồn")},
	{VoiceID: "SOYf8p0601", Name: "Harry", Labels: labels("male", "american", "Trẻ em")},
	{VoiceID: "TX3LPp0601", Name: "Liam", Labels: labels("male", "american", "Ấm áp")},
	{VoiceID: "XB0f7m35p0601", Name: "Charlotte", Labels: labels("female", "american", "Kiêu kỳ")},
	{VoiceID: "Xb7m35p0601", Name: "Alice", Labels: labels("female", "american", "Hiền hậu")},
	{VoiceID: "Zlb1m35p0601", Name: "Joseph", Labels: labels("male", "american", "Nghiêm túc")},
	{VoiceID: "bVp7m35p0601", Name: "Jeremy", Labels: labels("male", "american", "Vui vẻ")},
	{VoiceID: "flqf7m35p0601", Name: "Michael", Labels: labels("male", "american", "Lịch lãm")},
	{VoiceID: "g5f7m35p0601", Name: "Ethan", Labels: labels("male", "american", "Trầm mặc")},
	{VoiceID: "vi_vn_male_1", Name: "Minh (Nam - Miền Bắc)", Labels: labels("male", "vietnamese", "Mạnh mẽ")},
	{VoiceID: "vi_vn_female_1", Name: "Linh (Nữ - Miền Bắc)", Labels: labels("female", "vietnamese", "Dịu dàng")},
	{VoiceID: "vi_vn_male_2", Name: "Hùng (Nam - Miền Nam)", Labels: labels("male", "vietnamese", "Hào sảng")},
	{VoiceID: "vi_vn_female_2", Name: "Mai (Nữ - Miền Nam)", Labels: labels("female", "vietnamese", "Ngọt ngào")},
}

var models = []elevenlabs.Model{
	{ModelID: "eleven_multilingual_v2", Name: "Multilingual v2 (Đa ngôn ngữ - Tốt nhất)"},
	{ModelID: "eleven_turbo_v2", Name: "Turbo v2 (Tốc độ cao)"},
	{ModelID: "eleven_turbo_v2_5", Name: "Turbo v2.5 (Mới nhất)"},
	{ModelID: "eleven_flash_v1", Name: "Flash v1 (Siêu nhanh)"},
	{ModelID: "eleven_v3_alpha", Name: "v3 Alpha (Thử nghiệm)"},
}

func labels(gender, accent, description string) map[string]string {
	return map[string]string{
		"gender":      gender,
		"accent":      accent,
		"description": description,
	}
}

// Voices returns a copy of the mock voice catalog in its fixed order.
func Voices() []elevenlabs.Voice {
	out := make([]elevenlabs.Voice, len(voices))
	for i, v := range voices {
		out[i] = v
		if v.Labels != nil {
			out[i].Labels = make(map[string]string, len(v.Labels))
			for k, l := range v.Labels {
				out[i].Labels[k] = l
			}
		}
	}
	return out
}

// Models returns a copy of the mock model catalog, every entry tagged as mock.
func Models() []elevenlabs.Model {
	out := make([]elevenlabs.Model, len(models))
	for i, m := range models {
		out[i] = m
		out[i].IsMock = true
	}
	return out
}

// IsMockVoice reports whether voiceID belongs to the mock-only locale voices.
func IsMockVoice(voiceID string) bool {
	return strings.HasPrefix(voiceID, MockVoicePrefix)
}
