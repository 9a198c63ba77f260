package browser

import (
	"context"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// stealthScript hides the usual headless Chrome tells from page scripts.
const stealthScript = `
(function() {
    'use strict';

    Object.defineProperty(navigator, 'webdriver', { get: () => undefined, configurable: true });
    delete Object.getPrototypeOf(navigator).webdriver;

    Object.defineProperty(navigator, 'languages', {
        get: () => Object.freeze(['zh-CN', 'zh', 'en']),
        configurable: true
    });

    if (navigator.plugins.length === 0) {
        const plugins = [
            { name: 'PDF Viewer', filename: 'internal-pdf-viewer' },
            { name: 'Chrome PDF Viewer', filename: 'internal-pdf-viewer' }
        ].map((p) => {
            const plugin = Object.create(Plugin.prototype);
            Object.defineProperties(plugin, {
                name: { value: p.name, enumerable: true },
                filename: { value: p.filename, enumerable: true },
                description: { value: 'Portable Document Format', enumerable: true },
                length: { value: 1, enumerable: true }
            });
            return plugin;
        });
        const list = Object.create(PluginArray.prototype);
        plugins.forEach((p, i) => { list[i] = p; list[p.name] = p; });
        Object.defineProperty(list, 'length', { value: plugins.length });
        Object.defineProperty(list, 'item', { value: (i) => list[i] || null });
        Object.defineProperty(list, 'namedItem', { value: (n) => list[n] || null });
        Object.defineProperty(navigator, 'plugins', { get: () => list, configurable: true });
    }

    if (!window.chrome) {
        Object.defineProperty(window, 'chrome', { value: {}, writable: true, configurable: false });
    }
    if (!window.chrome.runtime) {
        window.chrome.runtime = { connect: function() {}, sendMessage: function() {} };
    }

    const query = Permissions.prototype.query;
    Permissions.prototype.query = function(parameters) {
        if (parameters && parameters.name === 'notifications') {
            return Promise.resolve({ state: Notification.permission });
        }
        return query.call(this, parameters);
    };

    const getParameter = {
        apply: function(target, ctx, args) {
            if (args[0] === 37445) { return 'Apple Inc.'; }
            if (args[0] === 37446) { return 'Apple GPU'; }
            return Reflect.apply(target, ctx, args);
        }
    };
    try {
        WebGLRenderingContext.prototype.getParameter =
            new Proxy(WebGLRenderingContext.prototype.getParameter, getParameter);
        WebGL2RenderingContext.prototype.getParameter =
            new Proxy(WebGL2RenderingContext.prototype.getParameter, getParameter);
    } catch (e) {}

    if (!navigator.hardwareConcurrency) {
        Object.defineProperty(navigator, 'hardwareConcurrency', { get: () => 8, configurable: true });
    }
})();
`

// allocatorOptions returns the Chrome flags for cfg.
func allocatorOptions(cfg Config) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("autoplay-policy", "user-gesture-required"),
		chromedp.WindowSize(1440, 900),
		chromedp.Flag("lang", "zh-CN"),
	)
	if cfg.Stealth {
		opts = append(opts,
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.Flag("excludeSwitches", "enable-automation"),
			chromedp.Flag("useAutomationExtension", false),
			chromedp.Flag("disable-infobars", true),
			chromedp.Flag("disable-background-timer-throttling", true),
			chromedp.Flag("disable-renderer-backgrounding", true),
		)
	}

	execPath := cfg.ExecPath
	if execPath == "" {
		execPath = FindChromePath()
	}
	if execPath != "" {
		opts = append(opts, chromedp.ExecPath(execPath))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	return opts
}

// injectStealthScript registers the stealth script to run before page
// scripts on every new document.
func injectStealthScript() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
		return err
	})
}

// CaptureScreenshot captures the current viewport for debugging.
// It returns nil if capture fails.
func (b *Browser) CaptureScreenshot(ctx context.Context) []byte {
	var shot []byte
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := b.run(ctx, chromedp.CaptureScreenshot(&shot)); err != nil {
		return nil
	}
	return shot
}
