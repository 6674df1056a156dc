// Package image produces scene photos for the companion, either through
// the CogView image API or from a prebuilt static library.
package image

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/xiaoyue/companion/internal/config"
)

// ErrNoImage marks an API response that carried no image.
var ErrNoImage = errors.New("no image produced")

// characterDescription 用于保持生成图片中人物形象的一致性。
const characterDescription = "一个22岁的年轻人，短发，休闲装扮，友好的表情，现代都市风格"

// scenePrompts 按 场景-子类 组合选择生成提示词。
var scenePrompts = map[string]string{
	"work-coffee":  "在温馨的咖啡馆里用笔记本电脑工作，桌上有一杯咖啡，温暖的灯光，专注的表情，现代咖啡馆背景，自然光线",
	"work-office":  "在现代办公室环境中写代码，多个显示器，整洁的桌面，专业的工作氛围，侧面角度",
	"work-debug":   "专注调试代码的场景，屏幕上显示代码编辑器，认真思考的表情，办公室环境",
	"life-gym":     "在健身房自拍，运动装，充满活力的表情，健身器材背景，明亮的灯光",
	"life-coffee":  "手持咖啡杯的特写，咖啡馆背景虚化，温馨的氛围，自然光线",
	"life-weekend": "周末休闲场景，轻松愉快的氛围，户外或咖啡馆，阳光明媚",
	"mood-happy":   "开心庆祝的场景，笑容灿烂，举起手机或咖啡杯，明亮的背景",
	"mood-tired":   "疲惫但满足的表情，靠在椅子上休息，温暖的灯光，办公室或家中",
	"mood-focus":   "专注工作的侧面照，深度思考的表情，屏幕光线照亮脸部，安静的环境",
}

// staticImages 是降级用的预制图库文件名映射。
var staticImages = map[string]string{
	"work-coffee":  "coffee-shop-work.jpg",
	"work-office":  "office-coding.jpg",
	"work-debug":   "debugging.jpg",
	"life-gym":     "gym-selfie.jpg",
	"life-coffee":  "coffee-break.jpg",
	"life-weekend": "weekend-relax.jpg",
	"mood-happy":   "celebration.jpg",
	"mood-tired":   "tired-rest.jpg",
	"mood-focus":   "deep-focus.jpg",
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Size   string `json:"size"`
}

type generateResponse struct {
	Created int64 `json:"created"`
	Data    []struct {
		URL string `json:"url"`
	} `json:"data"`
}

// Generator implements the image-generation capability.
type Generator struct {
	cfg    config.ImageConfig
	client *http.Client
	log    zerolog.Logger
}

// NewGenerator creates the generator and makes sure the local image
// directory exists.
func NewGenerator(cfg config.ImageConfig, log zerolog.Logger) (*Generator, error) {
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create image directory: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Generator{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		log:    log.With().Str("component", "image").Logger(),
	}, nil
}

// Generate returns an image reference for the scene/mood pair. In ai mode
// a failed API call falls back to the static library; static mode never
// calls out.
func (g *Generator) Generate(ctx context.Context, scene, mood string) (string, error) {
	if !g.cfg.Enabled() {
		return g.staticImage(scene, mood), nil
	}

	url, err := g.generateAI(ctx, scene, mood)
	if err != nil {
		g.log.Warn().Err(err).Str("scene", scene).Str("mood", mood).Msg("AI 配图失败，回退到静态图库")
		return g.staticImage(scene, mood), nil
	}

	// 缓存失败不影响主流程。
	if err := g.cacheImage(ctx, url, scene, mood); err != nil {
		g.log.Debug().Err(err).Msg("图片缓存失败")
	}

	return url, nil
}

func (g *Generator) generateAI(ctx context.Context, scene, mood string) (string, error) {
	payload, err := json.Marshal(generateRequest{
		Model:  g.cfg.Model,
		Prompt: buildPrompt(scene, mood),
		Size:   "1280x1280",
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call image api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("image api status %d: %s", resp.StatusCode, string(body))
	}

	result := &generateResponse{}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(result.Data) == 0 || result.Data[0].URL == "" {
		return "", ErrNoImage
	}

	return result.Data[0].URL, nil
}

// buildPrompt 组合人物设定、场景提示词与质量增强词。
func buildPrompt(scene, mood string) string {
	base, ok := scenePrompts[scene+"-"+mood]
	if !ok {
		if base, ok = scenePrompts[scene]; !ok {
			base = "日常生活场景"
		}
	}
	return characterDescription + "，" + base + "，高质量，自然光线，真实感，细节丰富，专业摄影"
}

func (g *Generator) staticImage(scene, mood string) string {
	filename, ok := staticImages[scene+"-"+mood]
	if !ok {
		if filename, ok = staticImages[scene]; !ok {
			filename = "default.jpg"
		}
	}

	path := filepath.Join(g.cfg.CacheDir, filename)
	if _, err := os.Stat(path); err != nil {
		g.log.Warn().Str("path", path).Msg("静态图片不存在，返回默认路径")
		return filepath.Join(g.cfg.CacheDir, "default.jpg")
	}
	return path
}

func (g *Generator) cacheImage(ctx context.Context, url, scene, mood string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download status %d", resp.StatusCode)
	}

	filename := fmt.Sprintf("%s-%s-%d.jpg", scene, mood, time.Now().UnixMilli())
	file, err := os.Create(filepath.Join(g.cfg.CacheDir, filename))
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = io.Copy(file, resp.Body)
	return err
}
