package browser

// stealthScript papers over the most common headless-Chrome tells
// before any page script runs.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] });
Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
window.chrome = window.chrome || { runtime: {} };
const originalQuery = window.navigator.permissions.query;
window.navigator.permissions.query = (parameters) => (
	parameters.name === 'notifications'
		? Promise.resolve({ state: Notification.permission })
		: originalQuery(parameters)
);
`

// injectTokenScript fills the solved captcha token into every
// g-recaptcha-response field on the page.
const injectTokenScript = `
(function(token) {
	document.querySelectorAll('textarea[name="g-recaptcha-response"],input[name="g-recaptcha-response"]')
		.forEach(el => el.value = token);
})(%q);
`

// findOverviewByTextScript locates the AI-overview container by its
// visible label when none of the attribute selectors match, returning
// its outerHTML or an empty string.
const findOverviewByTextScript = `
(function() {
	const labels = ['AI-powered overview', 'AI Overview'];
	const spans = document.querySelectorAll('div span, div h1, div h2');
	for (const el of spans) {
		const text = (el.textContent || '').trim();
		if (!labels.some(label => text.startsWith(label))) continue;
		let block = el.closest('div[jscontroller], div[data-rpos], div');
		for (let i = 0; i < 4 && block && block.parentElement; i++) {
			if (block.innerText && block.innerText.length > text.length + 80) break;
			block = block.parentElement;
		}
		if (block) return block.outerHTML;
	}
	return '';
})();
`
