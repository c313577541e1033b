/**
 * cmd/build/vendor.go
 * 第三方脚本占位文件
 *
 * 页面引用的 js/bricks.min.js、js/gtm.js 等真实实现来自 CDN，
 * 这里写入最小可用的本地脚本，保证引用路径始终存在
 */

package main

import (
	"fmt"

	"rareskills-site/internal/utils"
)

// vendorScript 占位脚本
type vendorScript struct {
	Filename string
	Content  string
}

// vendorScripts 固定的占位脚本列表（写入 <out>/js/）
var vendorScripts = []vendorScript{
	{Filename: "bricks.min.js", Content: bricksScript},
	{Filename: "gtm.js", Content: gtmScript},
	{Filename: "plausible.outbound-links.js", Content: plausibleScript},
	{Filename: "l.js", Content: crispScript},
}

// writeVendorScripts 写入全部占位脚本，重复执行结果一致
func (b *Builder) writeVendorScripts() error {
	for _, script := range vendorScripts {
		path := b.outPath("js", script.Filename)
		if err := b.writeFile(path, []byte(script.Content)); err != nil {
			return fmt.Errorf("failed to write vendor script %s: %w", script.Filename, err)
		}
		utils.LogPrintf("[BUILD] Created vendor script: %s", script.Filename)
	}
	return nil
}

const bricksScript = `
// Bricks theme functionality - minimal implementation for core features
(function() {
  'use strict';

  if (typeof window.bricksData === 'undefined') {
    console.warn('bricksData not found - some Bricks features may not work properly');
    return;
  }

  window.bricks = window.bricks || {};

  function initBricksMobileMenu() {
    const mobileToggle = document.querySelector('.bricks-mobile-menu-toggle');
    const mobileMenu = document.querySelector('.bricks-mobile-menu-wrapper');
    const overlay = document.querySelector('.bricks-mobile-menu-overlay');

    if (mobileToggle && mobileMenu && overlay) {
      mobileToggle.addEventListener('click', function() {
        const isExpanded = mobileToggle.getAttribute('aria-expanded') === 'true';
        mobileToggle.setAttribute('aria-expanded', (!isExpanded).toString());
        mobileMenu.classList.toggle('active', !isExpanded);
        overlay.classList.toggle('active', !isExpanded);
        document.body.classList.toggle('mobile-menu-open', !isExpanded);
      });

      overlay.addEventListener('click', function() {
        mobileToggle.setAttribute('aria-expanded', 'false');
        mobileMenu.classList.remove('active');
        overlay.classList.remove('active');
        document.body.classList.remove('mobile-menu-open');
      });
    }
  }

  function initBricksSubmenus() {
    const submenuToggles = document.querySelectorAll('.brx-submenu-toggle button');
    submenuToggles.forEach(function(toggle) {
      toggle.addEventListener('click', function(e) {
        e.preventDefault();
        const isExpanded = toggle.getAttribute('aria-expanded') === 'true';
        const submenu = toggle.parentElement?.querySelector('.sub-menu');

        toggle.setAttribute('aria-expanded', (!isExpanded).toString());
        if (submenu) {
          submenu.classList.toggle('show', !isExpanded);
        }
      });
    });
  }

  if (document.readyState === 'loading') {
    document.addEventListener('DOMContentLoaded', function() {
      initBricksMobileMenu();
      initBricksSubmenus();
    });
  } else {
    initBricksMobileMenu();
    initBricksSubmenus();
  }

  console.log('Bricks minimal functionality initialized');
})();`

const gtmScript = `
// Google Tag Manager integration - ensures gtag is available
(function() {
  'use strict';

  if (typeof window.gtag === 'undefined') {
    window.gtag = function() {
      if (window.dataLayer) {
        window.dataLayer.push(arguments);
      }
    };
  }

  window.dataLayer = window.dataLayer || [];

  console.log('GTM integration initialized');
})();`

const plausibleScript = `
// Plausible Analytics outbound links tracking
(function() {
  'use strict';

  if (typeof window.plausible === 'undefined') {
    window.plausible = window.plausible || function() {
      (window.plausible.q = window.plausible.q || []).push(arguments);
    };
  }

  function trackOutboundLinks() {
    document.addEventListener('click', function(e) {
      const link = e.target.closest('a');
      if (link && link.href && link.hostname !== window.location.hostname) {
        window.plausible('Outbound Link: Click', { props: { url: link.href } });
      }
    });
  }

  if (document.readyState === 'loading') {
    document.addEventListener('DOMContentLoaded', trackOutboundLinks);
  } else {
    trackOutboundLinks();
  }

  console.log('Plausible outbound link tracking initialized');
})();`

const crispScript = `
// Crisp Chat Integration
(function() {
  'use strict';

  if (typeof window.$crisp !== 'undefined' && typeof window.CRISP_WEBSITE_ID !== 'undefined') {
    window.$crisp.push(['safe', true]);
    console.log('Crisp chat integration initialized');
  } else {
    console.warn('Crisp configuration not found');
  }
})();`
